package contacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// abPhonesQuery joins contact records to their phone numbers.
const abPhonesQuery = `
	SELECT
		TRIM(COALESCE(r.ZFIRSTNAME, '') || ' ' || COALESCE(r.ZLASTNAME, '')),
		p.ZFULLNUMBER
	FROM ZABCDRECORD r
	JOIN ZABCDPHONENUMBER p ON r.Z_PK = p.ZOWNER
	WHERE (r.ZFIRSTNAME IS NOT NULL OR r.ZLASTNAME IS NOT NULL)
	  AND p.ZFULLNUMBER IS NOT NULL`

// abEmailsQuery joins contact records to their email addresses.
const abEmailsQuery = `
	SELECT
		TRIM(COALESCE(r.ZFIRSTNAME, '') || ' ' || COALESCE(r.ZLASTNAME, '')),
		e.ZADDRESSNORMALIZED
	FROM ZABCDRECORD r
	JOIN ZABCDEMAILADDRESS e ON r.Z_PK = e.ZOWNER
	WHERE (r.ZFIRSTNAME IS NOT NULL OR r.ZLASTNAME IS NOT NULL)
	  AND e.ZADDRESSNORMALIZED IS NOT NULL`

// DefaultAddressBookDir returns the macOS AddressBook sources
// directory.
func DefaultAddressBookDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Library", "Application Support", "AddressBook", "Sources")
}

// LoadAddressBook builds a contact table from every AddressBook source
// database under dir. A missing directory is not an error; it simply
// yields an empty table and raw identifiers are shown instead.
func LoadAddressBook(dir string) (*Table, error) {
	t := NewTable()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("reading addressbook sources %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dbPath := filepath.Join(dir, entry.Name(), "AddressBook-v22.abcddb")
		if _, err := os.Stat(dbPath); err != nil {
			continue
		}
		if err := loadAddressBookDB(t, dbPath); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func loadAddressBookDB(t *Table, dbPath string) error {
	db, err := sqlx.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return fmt.Errorf("opening addressbook %s: %w", dbPath, err)
	}
	defer db.Close()

	if err := loadPairs(db, abPhonesQuery, func(name, phone string) {
		t.Add(phone, name)
		if normalized := NormalizePhone(phone); normalized != phone {
			t.Add(normalized, name)
		}
	}); err != nil {
		return fmt.Errorf("loading addressbook phones: %w", err)
	}

	if err := loadPairs(db, abEmailsQuery, func(name, email string) {
		t.Add(email, name)
		if lower := strings.ToLower(email); lower != email {
			t.Add(lower, name)
		}
	}); err != nil {
		return fmt.Errorf("loading addressbook emails: %w", err)
	}

	return nil
}

func loadPairs(db *sqlx.DB, query string, add func(name, value string)) error {
	rows, err := db.Queryx(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return err
		}
		if name != "" && value != "" {
			add(name, value)
		}
	}
	return rows.Err()
}
