package contacts

import (
	"strings"

	"github.com/nhle/inbox-sweep/internal/model"
)

// Resolver maps a raw handle identifier (phone/email) to a display
// name. Implementations must be safe for concurrent readers.
type Resolver interface {
	// Resolve returns the display name for identifier and whether a
	// mapping was found.
	Resolve(identifier string) (string, bool)
}

// NopResolver resolves nothing. Used when no contact source is
// available; callers degrade to showing raw identifiers.
type NopResolver struct{}

func (NopResolver) Resolve(string) (string, bool) { return "", false }

// Table is an in-memory Resolver backed by a name map. Lookups fall
// back through phone normalization and a bare-number form without the
// +1 country code.
type Table struct {
	names map[string]string
}

// NewTable creates an empty contact table.
func NewTable() *Table {
	return &Table{names: make(map[string]string)}
}

// FromOverrides builds a table from the people configuration entries
// that carry a display-name override.
func FromOverrides(people []model.PersonOverride) *Table {
	t := NewTable()
	for _, p := range people {
		t.Add(p.Identifier, p.DisplayName)
	}
	return t
}

// Add registers a mapping from identifier to name. Empty identifiers
// or names are ignored.
func (t *Table) Add(identifier, name string) {
	if identifier == "" || name == "" {
		return
	}
	t.names[identifier] = name
}

// Len returns the number of registered identifiers.
func (t *Table) Len() int {
	return len(t.names)
}

// Resolve looks up identifier directly, then by normalized phone
// number, then without a leading +1 country code, then lowercased for
// email addresses.
func (t *Table) Resolve(identifier string) (string, bool) {
	if name, ok := t.names[identifier]; ok {
		return name, true
	}

	normalized := NormalizePhone(identifier)
	if normalized != "" {
		if name, ok := t.names[normalized]; ok {
			return name, true
		}
		if rest, ok := strings.CutPrefix(normalized, "+1"); ok {
			if name, ok := t.names[rest]; ok {
				return name, true
			}
		}
	}

	if lower := strings.ToLower(identifier); lower != identifier {
		if name, ok := t.names[lower]; ok {
			return name, true
		}
	}

	return "", false
}

// Chain tries each resolver in order and returns the first hit.
type Chain []Resolver

func (c Chain) Resolve(identifier string) (string, bool) {
	for _, r := range c {
		if name, ok := r.Resolve(identifier); ok {
			return name, true
		}
	}
	return "", false
}

// NormalizePhone strips everything but digits and '+' from a phone
// number. Non-phone identifiers reduce to the empty string.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
