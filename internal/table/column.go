package table

import (
	"strings"

	"ezdb/internal/ezerr"
	"ezdb/internal/keystring"
)

// ColumnType is one of the three primitive column kinds a header item can
// declare. Float columns may never be the primary key (spec §3.2).
type ColumnType uint8

const (
	ColumnInt ColumnType = iota
	ColumnFloat
	ColumnText
)

func (t ColumnType) String() string {
	switch t {
	case ColumnInt:
		return "int"
	case ColumnFloat:
		return "float"
	case ColumnText:
		return "text"
	default:
		return "unknown"
	}
}

// ParseColumnType accepts the CSV typespec spellings from spec §4.2.1:
// {i|int}, {f|float}, {t|text}, case-insensitive.
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "i", "int":
		return ColumnInt, nil
	case "f", "float":
		return ColumnFloat, nil
	case "t", "text":
		return ColumnText, nil
	default:
		return 0, ezerr.Newf(ezerr.Structure, "unknown column type %q", s)
	}
}

// Column is a tagged-variant typed vector: exactly one of Ints, Floats,
// Texts is populated, matching the column's declared ColumnType. Dispatch
// happens once per column rather than once per cell, which is what lets
// the inner loops stay simple slice walks.
type Column struct {
	Kind   ColumnType
	Ints   []int32
	Floats []float32
	Texts  []keystring.KeyString
}

// NewColumn allocates an empty column of the given kind.
func NewColumn(kind ColumnType) *Column {
	return &Column{Kind: kind}
}

// Len returns the row count stored in this column.
func (c *Column) Len() int {
	switch c.Kind {
	case ColumnInt:
		return len(c.Ints)
	case ColumnFloat:
		return len(c.Floats)
	case ColumnText:
		return len(c.Texts)
	default:
		return 0
	}
}

// Clone returns a deep copy so mutation of the result never aliases the
// source column's backing arrays.
func (c *Column) Clone() *Column {
	out := &Column{Kind: c.Kind}
	switch c.Kind {
	case ColumnInt:
		out.Ints = append([]int32(nil), c.Ints...)
	case ColumnFloat:
		out.Floats = append([]float32(nil), c.Floats...)
	case ColumnText:
		out.Texts = append([]keystring.KeyString(nil), c.Texts...)
	}
	return out
}

// GatherFrom appends the rows at idxs, taken from src, onto c. c and src
// must share Kind.
func (c *Column) GatherFrom(src *Column, idxs []int) {
	switch c.Kind {
	case ColumnInt:
		for _, i := range idxs {
			c.Ints = append(c.Ints, src.Ints[i])
		}
	case ColumnFloat:
		for _, i := range idxs {
			c.Floats = append(c.Floats, src.Floats[i])
		}
	case ColumnText:
		for _, i := range idxs {
			c.Texts = append(c.Texts, src.Texts[i])
		}
	}
}

// ZeroValue appends the type's zero value (0, 0.0, or an all-zero
// KeyString) to a column. Used to fill unmatched rows in LEFT_JOIN.
func (c *Column) ZeroValue() {
	switch c.Kind {
	case ColumnInt:
		c.Ints = append(c.Ints, 0)
	case ColumnFloat:
		c.Floats = append(c.Floats, 0)
	case ColumnText:
		c.Texts = append(c.Texts, keystring.KeyString{})
	}
}

// DeleteIndexes compacts the column in place, removing the rows named in
// the strictly ascending idxs slice.
func (c *Column) DeleteIndexes(idxs []int) {
	if len(idxs) == 0 {
		return
	}
	del := make(map[int]struct{}, len(idxs))
	for _, i := range idxs {
		del[i] = struct{}{}
	}
	switch c.Kind {
	case ColumnInt:
		kept := c.Ints[:0]
		for i, v := range c.Ints {
			if _, skip := del[i]; !skip {
				kept = append(kept, v)
			}
		}
		c.Ints = kept
	case ColumnFloat:
		kept := c.Floats[:0]
		for i, v := range c.Floats {
			if _, skip := del[i]; !skip {
				kept = append(kept, v)
			}
		}
		c.Floats = kept
	case ColumnText:
		kept := c.Texts[:0]
		for i, v := range c.Texts {
			if _, skip := del[i]; !skip {
				kept = append(kept, v)
			}
		}
		c.Texts = kept
	}
}
