// Package table implements EZTable, the columnar representation at the
// heart of EZDB: a schema (Header) plus one typed vector (Column) per
// header entry, kept row-aligned and sorted on the primary column.
package table

import (
	"fmt"
	"sync/atomic"

	"ezdb/internal/ezerr"
	"ezdb/internal/keystring"
)

// Metadata tracks bookkeeping fields that may be updated without holding
// the table's write lock (spec §4.6, "Atomic access counters").
type Metadata struct {
	CreatedBy     string
	lastAccess    atomic.Uint64
	timesAccessed atomic.Uint64
}

// Touch bumps the access counters. Safe to call while only holding a read
// lock, or no lock at all, on the owning table.
func (m *Metadata) Touch(unixNano uint64) {
	m.lastAccess.Store(unixNano)
	m.timesAccessed.Add(1)
}

// LastAccess returns the last recorded access timestamp.
func (m *Metadata) LastAccess() uint64 { return m.lastAccess.Load() }

// TimesAccessed returns the number of recorded accesses.
func (m *Metadata) TimesAccessed() uint64 { return m.timesAccessed.Load() }

// EZTable is the self-describing columnar table (spec §3.4). The zero
// value is not usable; construct with New.
type EZTable struct {
	Name     string
	Header   Header
	Columns  map[string]*Column
	Metadata Metadata
}

// New builds an empty table with one column allocated per header entry.
func New(name string, header Header) (*EZTable, error) {
	t := &EZTable{
		Name:    name,
		Header:  header,
		Columns: make(map[string]*Column, len(header)),
	}
	for _, item := range header {
		t.Columns[item.Name] = NewColumn(item.Kind)
	}
	return t, nil
}

// RowCount returns the table's row count, taken from the primary column.
func (t *EZTable) RowCount() int {
	pk := t.Header.Primary()
	if col, ok := t.Columns[pk.Name]; ok {
		return col.Len()
	}
	return 0
}

// Validate checks the invariants from spec §3.4 / §8.1:
//  1. schema-column bijection
//  2. equal column length
//  3. primary-key strict ascending order
//  4. (header ordering determinism is structural — Header is always kept sorted)
func (t *EZTable) Validate() error {
	if len(t.Header) == 0 {
		return ezerr.New(ezerr.Structure, "table has no header")
	}
	if len(t.Columns) != len(t.Header) {
		return ezerr.Newf(ezerr.Structure, "table %q: %d columns declared, %d stored", t.Name, len(t.Header), len(t.Columns))
	}

	rows := -1
	for _, item := range t.Header {
		col, ok := t.Columns[item.Name]
		if !ok {
			return ezerr.Newf(ezerr.Structure, "table %q: missing column %q", t.Name, item.Name)
		}
		if col.Kind != item.Kind {
			return ezerr.Newf(ezerr.Structure, "table %q: column %q kind mismatch", t.Name, item.Name)
		}
		if rows == -1 {
			rows = col.Len()
		} else if col.Len() != rows {
			return ezerr.Newf(ezerr.Structure, "table %q: column %q has %d rows, expected %d", t.Name, item.Name, col.Len(), rows)
		}
	}

	return t.validatePrimarySorted()
}

func (t *EZTable) validatePrimarySorted() error {
	pk := t.Header.Primary()
	col := t.Columns[pk.Name]
	n := col.Len()
	for i := 0; i+1 < n; i++ {
		a, _ := rowPK(col, i)
		b, _ := rowPK(col, i+1)
		if a.Compare(b) >= 0 {
			return ezerr.Newf(ezerr.Structure, "table %q: primary column not strictly ascending at row %d", t.Name, i)
		}
	}
	return nil
}

// PKValue is a type-erased primary key cell: exactly one of I or T is
// meaningful, selected by Kind (Float can never be primary per spec §3.2).
type PKValue struct {
	Kind ColumnType
	I    int32
	T    keystring.KeyString
}

// Compare orders two PKValues of the same Kind.
func (v PKValue) Compare(other PKValue) int {
	if v.Kind == ColumnInt {
		switch {
		case v.I < other.I:
			return -1
		case v.I > other.I:
			return 1
		default:
			return 0
		}
	}
	return v.T.Compare(other.T)
}

func rowPK(col *Column, i int) (PKValue, error) {
	switch col.Kind {
	case ColumnInt:
		return PKValue{Kind: ColumnInt, I: col.Ints[i]}, nil
	case ColumnText:
		return PKValue{Kind: ColumnText, T: col.Texts[i]}, nil
	default:
		return PKValue{}, ezerr.New(ezerr.Structure, "float column cannot be a primary key")
	}
}

// PKAt returns the primary key value of row i.
func (t *EZTable) PKAt(i int) (PKValue, error) {
	pk := t.Header.Primary()
	return rowPK(t.Columns[pk.Name], i)
}

// BinarySearch returns the index of key in the primary column, or the
// insertion point (the first index whose key is >= the search key) with
// found=false when it is absent. This underlies every range/list lookup
// (spec §4.2.6).
func (t *EZTable) BinarySearch(key PKValue) (idx int, found bool) {
	pk := t.Header.Primary()
	col := t.Columns[pk.Name]
	n := col.Len()
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		v, _ := rowPK(col, mid)
		if v.Compare(key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < n {
		v, _ := rowPK(col, lo)
		if v.Compare(key) == 0 {
			return lo, true
		}
	}
	return lo, false
}

func (t *EZTable) String() string {
	return fmt.Sprintf("EZTable(%s, %d columns, %d rows)", t.Name, len(t.Header), t.RowCount())
}
