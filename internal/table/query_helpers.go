package table

import (
	"sort"

	"ezdb/internal/ezerr"
)

// SubtableFromIndexes gathers the rows at idxs (need not be sorted, but
// typically is) into a new table that preserves column types and order.
func (t *EZTable) SubtableFromIndexes(idxs []int) (*EZTable, error) {
	out, err := New(t.Name, t.Header)
	if err != nil {
		return nil, err
	}
	for _, item := range t.Header {
		dst := out.Columns[item.Name]
		dst.GatherFrom(t.Columns[item.Name], idxs)
	}
	return out, nil
}

// SubtableFromColumns projects the table down to the named columns. The
// primary key column is always retained even if not requested, since
// every EZTable must have exactly one.
func (t *EZTable) SubtableFromColumns(names []string) (*EZTable, error) {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	pk := t.Header.Primary()
	want[pk.Name] = struct{}{}

	items := make([]HeaderItem, 0, len(want))
	for _, item := range t.Header {
		if _, ok := want[item.Name]; ok {
			items = append(items, item)
		}
	}
	header, err := NewHeader(items)
	if err != nil {
		return nil, err
	}

	out, err := New(t.Name, header)
	if err != nil {
		return nil, err
	}
	for _, item := range header {
		out.Columns[item.Name] = t.Columns[item.Name].Clone()
	}
	return out, nil
}

// DeleteByIndexes removes the rows at idxs in place. idxs must be
// strictly ascending; since they are removed from every column in
// lockstep, the primary column's sortedness is preserved automatically.
func (t *EZTable) DeleteByIndexes(idxs []int) error {
	if !sort.IntsAreSorted(idxs) {
		return ezerr.New(ezerr.Query, "delete_by_indexes: indexes must be strictly ascending")
	}
	for i := 1; i < len(idxs); i++ {
		if idxs[i] == idxs[i-1] {
			return ezerr.New(ezerr.Query, "delete_by_indexes: duplicate index")
		}
	}
	for _, item := range t.Header {
		t.Columns[item.Name].DeleteIndexes(idxs)
	}
	return nil
}

// LeftJoin joins t (left) with right on leftCol = rightCol, preserving
// every row of t. Unmatched rows take the zero value for every column
// borrowed from right. Column names that collide between the two tables
// are disambiguated by prefixing the right table's name, per spec open
// question #4.
func (t *EZTable) LeftJoin(right *EZTable, leftCol, rightCol string) (*EZTable, error) {
	leftItem, ok := t.Header.Find(leftCol)
	if !ok {
		return nil, ezerr.Newf(ezerr.Query, "left_join: left table has no column %q", leftCol)
	}
	rightItem, ok := right.Header.Find(rightCol)
	if !ok {
		return nil, ezerr.Newf(ezerr.Query, "left_join: right table has no column %q", rightCol)
	}
	if leftItem.Kind != rightItem.Kind {
		return nil, ezerr.New(ezerr.Query, "left_join: match columns have different types")
	}

	rightIdx := buildJoinIndex(right.Columns[rightCol])

	outItems := make([]HeaderItem, 0, len(t.Header)+len(right.Header))
	outItems = append(outItems, t.Header...)
	rightNames := make(map[string]string, len(right.Header))
	leftNames := make(map[string]struct{}, len(t.Header))
	for _, item := range t.Header {
		leftNames[item.Name] = struct{}{}
	}
	for _, item := range right.Header {
		if item.Name == rightItem.Name {
			continue
		}
		name := item.Name
		if _, collide := leftNames[name]; collide {
			name = right.Name + "." + name
		}
		rightNames[item.Name] = name
		item.Name = name
		if item.Key == KeyPrimary {
			item.Key = KeyNone
		}
		outItems = append(outItems, item)
	}

	header, err := NewHeader(outItems)
	if err != nil {
		return nil, err
	}
	out, err := New(t.Name, header)
	if err != nil {
		return nil, err
	}

	leftRows := t.RowCount()
	matchIdx := make([]int, leftRows)
	matched := make([]bool, leftRows)
	leftMatchCol := t.Columns[leftCol]
	for i := 0; i < leftRows; i++ {
		key, _ := cellKey(leftMatchCol, i)
		if ri, ok := rightIdx[key]; ok {
			matchIdx[i], matched[i] = ri, true
		}
	}

	for _, item := range t.Header {
		out.Columns[item.Name].GatherFrom(t.Columns[item.Name], allIndexes(leftRows))
	}
	for _, item := range right.Header {
		if item.Name == rightItem.Name {
			continue
		}
		outName := rightNames[item.Name]
		src := right.Columns[item.Name]
		dst := out.Columns[outName]
		for i := 0; i < leftRows; i++ {
			if matched[i] {
				appendRow(dst, src, matchIdx[i])
			} else {
				dst.ZeroValue()
			}
		}
	}

	return out, nil
}

func allIndexes(n int) []int {
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	return idxs
}

// buildJoinIndex builds a value -> first-row-index map so the join does
// not need rightCol to be sorted; when it is the primary column this
// degenerates to the same lookup a binary search would give.
func buildJoinIndex(col *Column) map[any]int {
	idx := make(map[any]int, col.Len())
	for i := 0; i < col.Len(); i++ {
		key, _ := cellKey(col, i)
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}
	return idx
}

func cellKey(col *Column, i int) (any, error) {
	switch col.Kind {
	case ColumnInt:
		return col.Ints[i], nil
	case ColumnFloat:
		return col.Floats[i], nil
	case ColumnText:
		return col.Texts[i], nil
	default:
		return nil, ezerr.New(ezerr.Structure, "unknown column kind")
	}
}
