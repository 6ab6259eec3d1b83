package table

import "ezdb/internal/ezerr"

// mergeTag records, for one output row of a sorted merge, which input
// contributed it. The same sequence then drives every non-primary column
// in lockstep so nothing needs to be re-sorted (spec §4.2.4 / design
// note "Merge-by-recorded-tag").
type mergeTag uint8

const (
	tagLeft mergeTag = iota
	tagRight
	tagCollide
)

// Update merges other's rows into t. Both tables must share a header.
// Rows unique to t are kept; rows unique to other are added; on a
// colliding primary key the incoming row (other's) wins — the spec
// resolves the source's ambiguous "two wins" / "existing preserved"
// wording this way (open question #3).
func (t *EZTable) Update(other *EZTable) error {
	if !t.Header.Equal(other.Header) {
		return ezerr.New(ezerr.Structure, "update: headers do not match")
	}

	pk := t.Header.Primary()
	leftCol, rightCol := t.Columns[pk.Name], other.Columns[pk.Name]
	nLeft, nRight := leftCol.Len(), rightCol.Len()

	tags := make([]mergeTag, 0, nLeft+nRight)
	i, j := 0, 0
	for i < nLeft && j < nRight {
		a, _ := rowPK(leftCol, i)
		b, _ := rowPK(rightCol, j)
		switch a.Compare(b) {
		case -1:
			tags = append(tags, tagLeft)
			i++
		case 1:
			tags = append(tags, tagRight)
			j++
		default:
			tags = append(tags, tagCollide)
			i++
			j++
		}
	}
	for ; i < nLeft; i++ {
		tags = append(tags, tagLeft)
	}
	for ; j < nRight; j++ {
		tags = append(tags, tagRight)
	}

	for _, item := range t.Header {
		merged := mergeColumn(t.Columns[item.Name], other.Columns[item.Name], tags)
		t.Columns[item.Name] = merged
	}
	return nil
}

func mergeColumn(left, right *Column, tags []mergeTag) *Column {
	out := NewColumn(left.Kind)
	li, ri := 0, 0
	for _, tg := range tags {
		switch tg {
		case tagLeft:
			appendRow(out, left, li)
			li++
		case tagRight:
			appendRow(out, right, ri)
			ri++
		case tagCollide:
			appendRow(out, right, ri)
			li++
			ri++
		}
	}
	return out
}

func appendRow(dst, src *Column, i int) {
	switch dst.Kind {
	case ColumnInt:
		dst.Ints = append(dst.Ints, src.Ints[i])
	case ColumnFloat:
		dst.Floats = append(dst.Floats, src.Floats[i])
	case ColumnText:
		dst.Texts = append(dst.Texts, src.Texts[i])
	}
}
