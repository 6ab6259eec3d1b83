// Package executor runs parsed EZQL chains against a Pool of buffer-pool
// tables, implementing spec §4.5: key resolution, predicate filtering,
// and the per-verb dispatch (SELECT/INSERT/UPDATE/DELETE/LEFT_JOIN/
// SUMMARY), threading the implicit __RESULT__ register between queries
// in a chain.
package executor

import (
	"sort"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"

	"ezdb/internal/ezerr"
	"ezdb/internal/ezql"
	"ezdb/internal/keystring"
	"ezdb/internal/stats"
	"ezdb/internal/table"
)

// Pool is what the executor needs from the buffer pool (spec §4.6):
// locked access to named tables, plus dirty-marking after a mutation.
// Release must always be called, exactly once, after the table is no
// longer needed.
type Pool interface {
	AcquireRead(name string) (t *table.EZTable, release func(), err error)
	AcquireWrite(name string) (t *table.EZTable, release func(), err error)
	// AcquireWriteOrCreate is used by INSERT, the only verb that may bring
	// a table into existence (spec open question #2: standalone CREATE is
	// unimplemented, so INSERT-creates-if-absent is the canonical path).
	AcquireWriteOrCreate(name string, header table.Header) (t *table.EZTable, release func(), err error)
	MarkDirty(name string)
}

// Run executes a chain of queries in order, threading the RESULT
// register, and returns the last query's output (nil if the chain ends
// on a mutating verb).
func Run(pool Pool, queries []*ezql.Query) (*table.EZTable, error) {
	var result *table.EZTable
	for _, q := range queries {
		out, err := runOne(pool, q, result)
		if err != nil {
			return nil, err
		}
		result = out
	}
	return result, nil
}

func runOne(pool Pool, q *ezql.Query, prevResult *table.EZTable) (*table.EZTable, error) {
	switch q.Verb {
	case ezql.VerbSelect:
		return execSelect(pool, q, prevResult)
	case ezql.VerbUpdate:
		return nil, execUpdate(pool, q, prevResult)
	case ezql.VerbInsert:
		return nil, execInsert(pool, q)
	case ezql.VerbDelete:
		return nil, execDelete(pool, q, prevResult)
	case ezql.VerbLeftJoin:
		return execLeftJoin(pool, q, prevResult)
	case ezql.VerbSummary:
		return execSummary(pool, q, prevResult)
	case ezql.VerbCreate, ezql.VerbInnerJoin, ezql.VerbRightJoin, ezql.VerbFullJoin:
		return nil, ezerr.Newf(ezerr.Unimplemented, "%s is not implemented", q.Verb)
	default:
		return nil, ezerr.Newf(ezerr.Query, "unknown verb %q", q.Verb)
	}
}

// resolveRead returns the table a query should read from: the RESULT
// register if the query targets it, otherwise a pool-acquired read lock.
func resolveRead(pool Pool, q *ezql.Query, prevResult *table.EZTable) (*table.EZTable, func(), error) {
	if q.RefersToResult() {
		if prevResult == nil {
			return nil, nil, ezerr.New(ezerr.Query, "query refers to the RESULT register, but it is empty")
		}
		return prevResult, func() {}, nil
	}
	return pool.AcquireRead(q.Table)
}

func resolveWrite(pool Pool, q *ezql.Query) (*table.EZTable, func(), error) {
	if q.RefersToResult() {
		return nil, nil, ezerr.New(ezerr.Query, "the RESULT register cannot be the target of a mutating query")
	}
	return pool.AcquireWrite(q.Table)
}

func execSelect(pool Pool, q *ezql.Query, prevResult *table.EZTable) (*table.EZTable, error) {
	t, release, err := resolveRead(pool, q, prevResult)
	if err != nil {
		return nil, err
	}
	defer release()

	idxs, err := KeysToIndexes(t, q.Keys)
	if err != nil {
		return nil, err
	}
	idxs, err = FilterKeepers(t, idxs, q.Conditions)
	if err != nil {
		return nil, err
	}
	sub, err := t.SubtableFromIndexes(idxs)
	if err != nil {
		return nil, err
	}
	sub.Name = ezql.ResultRegister
	if q.Columns != nil {
		sub, err = sub.SubtableFromColumns(q.Columns)
		if err != nil {
			return nil, err
		}
		sub.Name = ezql.ResultRegister
	}
	return sub, nil
}

func execDelete(pool Pool, q *ezql.Query, prevResult *table.EZTable) error {
	t, release, err := resolveWrite(pool, q)
	if err != nil {
		return err
	}
	defer release()

	idxs, err := KeysToIndexes(t, q.Keys)
	if err != nil {
		return err
	}
	idxs, err = FilterKeepers(t, idxs, q.Conditions)
	if err != nil {
		return err
	}
	if err := t.DeleteByIndexes(idxs); err != nil {
		return err
	}
	pool.MarkDirty(t.Name)
	return nil
}

func execInsert(pool Pool, q *ezql.Query) error {
	if q.InsertRows == nil {
		return ezerr.New(ezerr.Query, "insert: no rows given")
	}
	if q.RefersToResult() {
		return ezerr.New(ezerr.Query, "the RESULT register cannot be the target of a mutating query")
	}
	t, release, err := pool.AcquireWriteOrCreate(q.Table, q.InsertRows.Header)
	if err != nil {
		return err
	}
	defer release()

	if err := t.Update(q.InsertRows); err != nil {
		return err
	}
	pool.MarkDirty(t.Name)
	return nil
}

func execLeftJoin(pool Pool, q *ezql.Query, prevResult *table.EZTable) (*table.EZTable, error) {
	left, releaseLeft, err := resolveRead(pool, q, prevResult)
	if err != nil {
		return nil, err
	}
	defer releaseLeft()

	right, releaseRight, err := pool.AcquireRead(q.RightTable)
	if err != nil {
		return nil, err
	}
	defer releaseRight()

	idxs, err := KeysToIndexes(left, q.Keys)
	if err != nil {
		return nil, err
	}
	leftSub, err := left.SubtableFromIndexes(idxs)
	if err != nil {
		return nil, err
	}
	out, err := leftSub.LeftJoin(right, q.JoinLeftCol, q.JoinRightCol)
	if err != nil {
		return nil, err
	}
	out.Name = ezql.ResultRegister
	return out, nil
}

// KeysToIndexes resolves a KeyRange against t's primary column (spec
// §4.5.2), always returning a strictly ascending index slice.
func KeysToIndexes(t *table.EZTable, kr ezql.KeyRange) ([]int, error) {
	switch kr.Kind {
	case ezql.RangeAll:
		return allIndexes(t.RowCount()), nil
	case ezql.RangeSpan:
		from, err := parsePKValue(t, kr.From)
		if err != nil {
			return nil, err
		}
		to, err := parsePKValue(t, kr.To)
		if err != nil {
			return nil, err
		}
		lo, _ := t.BinarySearch(from)
		hiIdx, found := t.BinarySearch(to)
		if found {
			hiIdx++
		}
		if hiIdx < lo {
			hiIdx = lo
		}
		idxs := make([]int, 0, hiIdx-lo)
		for i := lo; i < hiIdx; i++ {
			idxs = append(idxs, i)
		}
		return idxs, nil
	case ezql.RangeList:
		keys := make([]table.PKValue, 0, len(kr.List))
		for _, raw := range kr.List {
			v, err := parsePKValue(t, raw)
			if err != nil {
				return nil, err
			}
			keys = append(keys, v)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
		var idxs []int
		for _, k := range keys {
			if i, found := t.BinarySearch(k); found && (len(idxs) == 0 || idxs[len(idxs)-1] != i) {
				idxs = append(idxs, i)
			}
		}
		return idxs, nil
	default:
		return nil, ezerr.New(ezerr.Structure, "unknown key range kind")
	}
}

func parsePKValue(t *table.EZTable, raw string) (table.PKValue, error) {
	pk := t.Header.Primary()
	switch pk.Kind {
	case table.ColumnInt:
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return table.PKValue{}, ezerr.Newf(ezerr.Query, "malformed integer key %q", raw)
		}
		return table.PKValue{Kind: table.ColumnInt, I: int32(n)}, nil
	case table.ColumnText:
		ks, err := keystring.From(raw)
		if err != nil {
			return table.PKValue{}, err
		}
		return table.PKValue{Kind: table.ColumnText, T: ks}, nil
	default:
		return table.PKValue{}, ezerr.New(ezerr.Structure, "primary column has an unsupported type")
	}
}

func allIndexes(n int) []int {
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	return idxs
}

// FilterKeepers applies the flat Cond (Op Cond)* stream to idxs (spec
// §4.5.3). The initial implicit operator is OR, so the first condition
// seeds the keeper set; later OR conditions union in more rows, later AND
// conditions intersect them out.
func FilterKeepers(t *table.EZTable, idxs []int, conds ezql.Conditions) ([]int, error) {
	if len(conds.Conds) == 0 {
		return idxs, nil
	}

	keep := roaring.New()
	passing, err := matchingIndexes(t, idxs, conds.Conds[0])
	if err != nil {
		return nil, err
	}
	for _, i := range passing {
		keep.Add(uint32(i))
	}

	for i := 1; i < len(conds.Conds); i++ {
		op := conds.Ops[i-1]
		pass, err := matchingIndexes(t, idxs, conds.Conds[i])
		if err != nil {
			return nil, err
		}
		bm := roaring.New()
		for _, idx := range pass {
			bm.Add(uint32(idx))
		}
		if op == ezql.LogicOr {
			keep.Or(bm)
		} else {
			keep.And(bm)
		}
	}

	out := make([]int, 0, keep.GetCardinality())
	it := keep.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out, nil
}

func matchingIndexes(t *table.EZTable, idxs []int, cond ezql.Cond) ([]int, error) {
	item, ok := t.Header.Find(cond.Attribute)
	if !ok {
		return nil, ezerr.Newf(ezerr.Query, "conditions: no such column %q", cond.Attribute)
	}
	col := t.Columns[item.Name]

	if (cond.Test == ezql.TestStarts || cond.Test == ezql.TestEnds || cond.Test == ezql.TestContains) && col.Kind != table.ColumnText {
		return nil, ezerr.Newf(ezerr.Query, "conditions: %s requires a text column, %q is %s", cond.Test, cond.Attribute, col.Kind)
	}

	var out []int
	for _, i := range idxs {
		ok, err := testCell(col, i, cond)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, i)
		}
	}
	return out, nil
}

func testCell(col *table.Column, i int, cond ezql.Cond) (bool, error) {
	switch col.Kind {
	case table.ColumnInt:
		want, err := strconv.ParseInt(cond.Value, 10, 32)
		if err != nil {
			return false, ezerr.Newf(ezerr.Query, "conditions: malformed integer literal %q", cond.Value)
		}
		return compareOrdered(int64(col.Ints[i]), want, cond.Test)
	case table.ColumnFloat:
		want, err := strconv.ParseFloat(cond.Value, 32)
		if err != nil {
			return false, ezerr.Newf(ezerr.Query, "conditions: malformed float literal %q", cond.Value)
		}
		return compareOrderedFloat(float64(col.Floats[i]), want, cond.Test)
	case table.ColumnText:
		have := col.Texts[i].String()
		return testText(have, cond.Value, cond.Test)
	default:
		return false, ezerr.New(ezerr.Structure, "unknown column kind")
	}
}

func compareOrdered(have, want int64, test ezql.TestOp) (bool, error) {
	switch test {
	case ezql.TestEquals:
		return have == want, nil
	case ezql.TestNotEquals:
		return have != want, nil
	case ezql.TestLess:
		return have < want, nil
	case ezql.TestGreater:
		return have > want, nil
	default:
		return false, ezerr.Newf(ezerr.Query, "conditions: %s requires a text column", test)
	}
}

func compareOrderedFloat(have, want float64, test ezql.TestOp) (bool, error) {
	switch test {
	case ezql.TestEquals:
		return have == want, nil
	case ezql.TestNotEquals:
		return have != want, nil
	case ezql.TestLess:
		return have < want, nil
	case ezql.TestGreater:
		return have > want, nil
	default:
		return false, ezerr.Newf(ezerr.Query, "conditions: %s requires a text column", test)
	}
}

func testText(have, want string, test ezql.TestOp) (bool, error) {
	switch test {
	case ezql.TestEquals:
		return have == want, nil
	case ezql.TestNotEquals:
		return have != want, nil
	case ezql.TestLess:
		return have < want, nil
	case ezql.TestGreater:
		return have > want, nil
	case ezql.TestStarts:
		return len(have) >= len(want) && have[:len(want)] == want, nil
	case ezql.TestEnds:
		return len(have) >= len(want) && have[len(have)-len(want):] == want, nil
	case ezql.TestContains:
		return containsSubstring(have, want), nil
	default:
		return false, ezerr.Newf(ezerr.Query, "conditions: unknown test %q", test)
	}
}

func containsSubstring(have, want string) bool {
	if want == "" {
		return true
	}
	for i := 0; i+len(want) <= len(have); i++ {
		if have[i:i+len(want)] == want {
			return true
		}
	}
	return false
}
