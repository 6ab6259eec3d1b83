package table

import (
	"sort"
	"strings"

	"ezdb/internal/ezerr"
	"ezdb/internal/keystring"
)

// KeyKind marks whether a header item is the primary key, a foreign key
// reference, or an ordinary column.
type KeyKind uint8

const (
	KeyNone KeyKind = iota
	KeyPrimary
	KeyForeign
)

// HeaderItem describes one column: its name, declared type, and key role.
// Foreign keys additionally name the table/column they reference, though
// foreign key enforcement itself is a spec non-goal — the reference is
// carried for round-tripping only.
type HeaderItem struct {
	Name          string
	Kind          ColumnType
	Key           KeyKind
	RefTable      string
	RefColumn     string
}

// Header is the ordered set of a table's HeaderItems, kept sorted by name
// so iteration is deterministic (spec §3.3, invariant 8.1.4).
type Header []HeaderItem

// NewHeader sorts items by name and validates the exactly-one-primary
// invariant.
func NewHeader(items []HeaderItem) (Header, error) {
	h := append(Header(nil), items...)
	sort.Slice(h, func(i, j int) bool { return h[i].Name < h[j].Name })

	seen := make(map[string]struct{}, len(h))
	primaries := 0
	for _, item := range h {
		lower := strings.ToLower(item.Name)
		if _, dup := seen[lower]; dup {
			return nil, ezerr.Newf(ezerr.Structure, "duplicate column name %q", item.Name)
		}
		seen[lower] = struct{}{}

		if len(item.Name) > keystring.Size {
			return nil, ezerr.Newf(ezerr.Structure, "column name %q exceeds %d bytes", item.Name, keystring.Size)
		}
		if item.Key == KeyPrimary {
			primaries++
			if item.Kind == ColumnFloat {
				return nil, ezerr.New(ezerr.Structure, "float columns may not be the primary key")
			}
		}
	}
	if primaries != 1 {
		return nil, ezerr.Newf(ezerr.Structure, "table must have exactly one primary key column, found %d", primaries)
	}
	return h, nil
}

// Find returns the header item named name, case-sensitively.
func (h Header) Find(name string) (HeaderItem, bool) {
	for _, item := range h {
		if item.Name == name {
			return item, true
		}
	}
	return HeaderItem{}, false
}

// Primary returns the table's sole primary-key header item.
func (h Header) Primary() HeaderItem {
	for _, item := range h {
		if item.Key == KeyPrimary {
			return item
		}
	}
	return HeaderItem{}
}

// Names returns the header's column names in header order.
func (h Header) Names() []string {
	names := make([]string, len(h))
	for i, item := range h {
		names[i] = item.Name
	}
	return names
}

// Equal reports whether two headers declare the same columns with the
// same types and key roles, independent of slice identity.
func (h Header) Equal(other Header) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if h[i].Name != other[i].Name || h[i].Kind != other[i].Kind || h[i].Key != other[i].Key {
			return false
		}
	}
	return true
}
