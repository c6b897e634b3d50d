package chatdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/inbox-sweep/internal/model"
)

// NotFoundError indicates the chat database does not exist at the
// configured path.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("chat database not found at %s", e.Path)
}

// IsNotFound reports whether err (or any error in its chain) is a
// NotFoundError.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// PermissionError indicates the chat database exists but cannot be
// opened, typically because Full Disk Access has not been granted.
type PermissionError struct {
	Path string
	Err  error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied opening %s: %v", e.Path, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// IsPermission reports whether err (or any error in its chain) is a
// PermissionError.
func IsPermission(err error) bool {
	var permErr *PermissionError
	return errors.As(err, &permErr)
}

// BusyError indicates the store stayed locked by a concurrent writer
// for the whole bounded retry budget.
type BusyError struct {
	Attempts int
	Err      error
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("store locked after %d attempts: %v", e.Attempts, e.Err)
}

func (e *BusyError) Unwrap() error { return e.Err }

// IsBusy reports whether err (or any error in its chain) is a BusyError.
func IsBusy(err error) bool {
	var busyErr *BusyError
	return errors.As(err, &busyErr)
}

// DB is a read-only handle to the Messages chat database. It tolerates
// a concurrent writer (Messages.app) and never writes to the store.
type DB struct {
	db      *sqlx.DB
	path    string
	window  int
	retries int
	backoff time.Duration
}

// Open opens the chat database read-only at the path configured in cfg.
// A missing file yields a NotFoundError; an unreadable one (no Full
// Disk Access) yields a PermissionError.
func Open(cfg model.StoreConfig) (*DB, error) {
	if _, err := os.Stat(cfg.Path); err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: cfg.Path}
		}
		if os.IsPermission(err) {
			return nil, &PermissionError{Path: cfg.Path, Err: err}
		}
		return nil, fmt.Errorf("inspecting chat database %s: %w", cfg.Path, err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro", cfg.Path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening chat database: %w", err)
	}

	// Force the connection to surface open errors now rather than on
	// the first query.
	var one int
	if err := db.Get(&one, "SELECT 1"); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "unable to open") {
			return nil, &PermissionError{Path: cfg.Path, Err: err}
		}
		return nil, fmt.Errorf("opening chat database: %w", err)
	}

	window := cfg.ContextWindow
	if window <= 0 {
		window = 15
	}
	retries := cfg.BusyRetries
	if retries < 0 {
		retries = 0
	}
	backoff := time.Duration(cfg.BusyBackoffMs) * time.Millisecond
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	return &DB{
		db:      db,
		path:    cfg.Path,
		window:  window,
		retries: retries,
		backoff: backoff,
	}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// withRetry runs op, retrying with doubling backoff while the store is
// locked by a concurrent writer. Exhausting the budget yields a
// BusyError; any other failure is returned as-is.
func (d *DB) withRetry(ctx context.Context, op func() error) error {
	backoff := d.backoff
	var err error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		err = op()
		if err == nil || !isLocked(err) {
			return err
		}
	}
	return &BusyError{Attempts: d.retries + 1, Err: err}
}

// isLocked reports whether err is a transient SQLite lock condition.
func isLocked(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "busy")
}
