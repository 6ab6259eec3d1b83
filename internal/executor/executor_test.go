package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ezdb/internal/ezerr"
	"ezdb/internal/ezql"
	"ezdb/internal/table"
)

// fakePool is a minimal, unsynchronized Pool for single-goroutine tests.
type fakePool struct {
	tables map[string]*table.EZTable
	dirty  map[string]bool
}

func newFakePool() *fakePool {
	return &fakePool{tables: make(map[string]*table.EZTable), dirty: make(map[string]bool)}
}

func (p *fakePool) AcquireRead(name string) (*table.EZTable, func(), error) {
	t, ok := p.tables[name]
	if !ok {
		return nil, nil, ezerr.Newf(ezerr.Query, "no such table %q", name)
	}
	return t, func() {}, nil
}

func (p *fakePool) AcquireWrite(name string) (*table.EZTable, func(), error) {
	return p.AcquireRead(name)
}

func (p *fakePool) AcquireWriteOrCreate(name string, header table.Header) (*table.EZTable, func(), error) {
	if t, ok := p.tables[name]; ok {
		return t, func() {}, nil
	}
	t, err := table.New(name, header)
	if err != nil {
		return nil, nil, err
	}
	p.tables[name] = t
	return t, func() {}, nil
}

func (p *fakePool) MarkDirty(name string) {
	p.dirty[name] = true
}

func widgetsTable(t *testing.T) *table.EZTable {
	t.Helper()
	tbl, err := table.FromCSVString("widgets", "id,int-p;name,text;price,float\n1;alpha;1.5\n2;beta;2.5\n3;gamma;3.5\n")
	require.NoError(t, err)
	return tbl
}

func TestExecSelectAllRows(t *testing.T) {
	pool := newFakePool()
	pool.tables["widgets"] = widgetsTable(t)

	out, err := Run(pool, []*ezql.Query{{Verb: ezql.VerbSelect, Table: "widgets", Keys: ezql.KeyRange{Kind: ezql.RangeAll}}})
	require.NoError(t, err)
	assert.Equal(t, 3, out.RowCount())
}

func TestExecSelectKeyRangeAndColumns(t *testing.T) {
	pool := newFakePool()
	pool.tables["widgets"] = widgetsTable(t)

	out, err := Run(pool, []*ezql.Query{{
		Verb:    ezql.VerbSelect,
		Table:   "widgets",
		Keys:    ezql.KeyRange{Kind: ezql.RangeSpan, From: "1", To: "2"},
		Columns: []string{"name"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.RowCount())
	_, hasPrice := out.Columns["price"]
	assert.False(t, hasPrice)
	_, hasID := out.Columns["id"]
	assert.True(t, hasID, "primary key column is always retained")
}

func TestExecSelectConditions(t *testing.T) {
	pool := newFakePool()
	pool.tables["widgets"] = widgetsTable(t)

	out, err := Run(pool, []*ezql.Query{{
		Verb:  ezql.VerbSelect,
		Table: "widgets",
		Keys:  ezql.KeyRange{Kind: ezql.RangeAll},
		Conditions: ezql.Conditions{
			Conds: []ezql.Cond{{Attribute: "price", Test: ezql.TestGreater, Value: "2"}},
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.RowCount())
}

func TestExecSelectConditionsStartsRequiresText(t *testing.T) {
	pool := newFakePool()
	pool.tables["widgets"] = widgetsTable(t)

	_, err := Run(pool, []*ezql.Query{{
		Verb:  ezql.VerbSelect,
		Table: "widgets",
		Keys:  ezql.KeyRange{Kind: ezql.RangeAll},
		Conditions: ezql.Conditions{
			Conds: []ezql.Cond{{Attribute: "price", Test: ezql.TestStarts, Value: "2"}},
		},
	}})
	assert.Error(t, err)
}

func TestExecChainedQueriesThreadResultRegister(t *testing.T) {
	pool := newFakePool()
	pool.tables["widgets"] = widgetsTable(t)

	out, err := Run(pool, []*ezql.Query{
		{Verb: ezql.VerbSelect, Table: "widgets", Keys: ezql.KeyRange{Kind: ezql.RangeAll}},
		{Verb: ezql.VerbSelect, Table: ezql.ResultRegister, Keys: ezql.KeyRange{Kind: ezql.RangeAll}, Columns: []string{"name"}},
	})
	require.NoError(t, err)
	_, hasPrice := out.Columns["price"]
	assert.False(t, hasPrice)
}

func TestExecSelectResultRegisterEmptyErrors(t *testing.T) {
	pool := newFakePool()
	_, err := Run(pool, []*ezql.Query{{Verb: ezql.VerbSelect, Table: ezql.ResultRegister, Keys: ezql.KeyRange{Kind: ezql.RangeAll}}})
	assert.Error(t, err)
}

func TestExecDeleteRemovesMatchingRows(t *testing.T) {
	pool := newFakePool()
	pool.tables["widgets"] = widgetsTable(t)

	_, err := Run(pool, []*ezql.Query{{
		Verb:  ezql.VerbDelete,
		Table: "widgets",
		Keys:  ezql.KeyRange{Kind: ezql.RangeList, List: []string{"2"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, pool.tables["widgets"].RowCount())
	assert.True(t, pool.dirty["widgets"])
}

func TestExecInsertCreatesTableIfAbsent(t *testing.T) {
	pool := newFakePool()
	rows, err := table.FromCSVString("gadgets", "id,int-p;name,text\n1;thing\n")
	require.NoError(t, err)

	_, err = Run(pool, []*ezql.Query{{Verb: ezql.VerbInsert, Table: "gadgets", InsertRows: rows}})
	require.NoError(t, err)
	require.Contains(t, pool.tables, "gadgets")
	assert.Equal(t, 1, pool.tables["gadgets"].RowCount())
	assert.True(t, pool.dirty["gadgets"])
}

func TestExecInsertMergesIntoExistingTable(t *testing.T) {
	pool := newFakePool()
	pool.tables["widgets"] = widgetsTable(t)
	rows, err := table.FromCSVString("widgets", "id,int-p;name,text;price,float\n4;delta;4.5\n")
	require.NoError(t, err)

	_, err = Run(pool, []*ezql.Query{{Verb: ezql.VerbInsert, Table: "widgets", InsertRows: rows}})
	require.NoError(t, err)
	assert.Equal(t, 4, pool.tables["widgets"].RowCount())
}

func TestExecInsertRejectsResultRegisterTarget(t *testing.T) {
	pool := newFakePool()
	rows, err := table.FromCSVString("x", "id,int-p\n1\n")
	require.NoError(t, err)
	_, err = Run(pool, []*ezql.Query{{Verb: ezql.VerbInsert, Table: ezql.ResultRegister, InsertRows: rows}})
	assert.Error(t, err)
}

func TestExecUpdateAppliesArithmetic(t *testing.T) {
	pool := newFakePool()
	pool.tables["widgets"] = widgetsTable(t)

	_, err := Run(pool, []*ezql.Query{{
		Verb:  ezql.VerbUpdate,
		Table: "widgets",
		Keys:  ezql.KeyRange{Kind: ezql.RangeAll},
		Updates: []ezql.Update{
			{Attribute: "price", Op: ezql.OpPlusEquals, Value: "1"},
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, []float32{2.5, 3.5, 4.5}, pool.tables["widgets"].Columns["price"].Floats)
}

func TestExecUpdateRejectsArithmeticOnTextColumn(t *testing.T) {
	pool := newFakePool()
	pool.tables["widgets"] = widgetsTable(t)

	_, err := Run(pool, []*ezql.Query{{
		Verb:  ezql.VerbUpdate,
		Table: "widgets",
		Keys:  ezql.KeyRange{Kind: ezql.RangeAll},
		Updates: []ezql.Update{
			{Attribute: "name", Op: ezql.OpPlusEquals, Value: "1"},
		},
	}})
	assert.Error(t, err)
}

func TestExecUpdateAtomicPlanThenApply(t *testing.T) {
	pool := newFakePool()
	pool.tables["widgets"] = widgetsTable(t)

	_, err := Run(pool, []*ezql.Query{{
		Verb:  ezql.VerbUpdate,
		Table: "widgets",
		Keys:  ezql.KeyRange{Kind: ezql.RangeAll},
		Updates: []ezql.Update{
			{Attribute: "price", Op: ezql.OpPlusEquals, Value: "1"},
			{Attribute: "name", Op: ezql.OpPlusEquals, Value: "1"},
		},
	}})
	assert.Error(t, err)
	// The invalid update on name must have aborted before the valid price
	// update was applied.
	assert.Equal(t, []float32{1.5, 2.5, 3.5}, pool.tables["widgets"].Columns["price"].Floats)
}

func TestExecLeftJoin(t *testing.T) {
	pool := newFakePool()
	orders, err := table.New("orders", table.Header{
		{Name: "id", Kind: table.ColumnInt, Key: table.KeyPrimary},
		{Name: "customer_id", Kind: table.ColumnInt},
	})
	require.NoError(t, err)
	orders.Columns["id"].Ints = []int32{1, 2}
	orders.Columns["customer_id"].Ints = []int32{10, 99}
	pool.tables["orders"] = orders

	customers, err := table.New("customers", table.Header{
		{Name: "id", Kind: table.ColumnInt, Key: table.KeyPrimary},
	})
	require.NoError(t, err)
	customers.Columns["id"].Ints = []int32{10}
	pool.tables["customers"] = customers

	out, err := Run(pool, []*ezql.Query{{
		Verb:         ezql.VerbLeftJoin,
		Table:        "orders",
		Keys:         ezql.KeyRange{Kind: ezql.RangeAll},
		RightTable:   "customers",
		JoinLeftCol:  "customer_id",
		JoinRightCol: "id",
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.RowCount())
}

func TestExecSummaryComputesAllFiveSlotsPerColumn(t *testing.T) {
	pool := newFakePool()
	pool.tables["widgets"] = widgetsTable(t)

	out, err := Run(pool, []*ezql.Query{{
		Verb:       ezql.VerbSummary,
		Table:      "widgets",
		Keys:       ezql.KeyRange{Kind: ezql.RangeAll},
		Statistics: []ezql.Statistic{{Column: "price", Actions: []ezql.StatAction{ezql.StatSum}}},
	}})
	require.NoError(t, err)
	require.NoError(t, out.Validate())
	assert.Equal(t, 5, out.RowCount())

	statCol := out.Columns["Statistic"]
	names := make([]string, statCol.Len())
	for i := range names {
		names[i] = statCol.Texts[i].String()
	}
	assert.Equal(t, []string{"MEAN", "MEDIAN", "MODE", "STDEV", "SUM"}, names)
}

func TestExecUnimplementedVerbsError(t *testing.T) {
	pool := newFakePool()
	pool.tables["widgets"] = widgetsTable(t)

	for _, verb := range []ezql.Verb{ezql.VerbCreate, ezql.VerbInnerJoin, ezql.VerbRightJoin, ezql.VerbFullJoin} {
		_, err := Run(pool, []*ezql.Query{{Verb: verb, Table: "widgets"}})
		require.Error(t, err)
		assert.True(t, ezerr.Is(err, ezerr.Unimplemented))
	}
	// The table must be untouched by the failed unimplemented verbs.
	assert.Equal(t, 3, pool.tables["widgets"].RowCount())
}

func TestKeysToIndexesAlwaysAscending(t *testing.T) {
	tbl := widgetsTable(t)
	idxs, err := KeysToIndexes(tbl, ezql.KeyRange{Kind: ezql.RangeList, List: []string{"3", "1"}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, idxs)
}

func TestFilterKeepersSubsetOfInput(t *testing.T) {
	tbl := widgetsTable(t)
	in := []int{0, 1, 2}
	out, err := FilterKeepers(tbl, in, ezql.Conditions{
		Conds: []ezql.Cond{{Attribute: "price", Test: ezql.TestGreater, Value: "100"}},
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}
