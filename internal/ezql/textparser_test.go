package ezql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ezdb/internal/ezerr"
)

func TestParseSelectAllKeysAllColumns(t *testing.T) {
	qs, err := Parse(`SELECT(table: users, keys: *, columns: *)`)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	q := qs[0]
	assert.Equal(t, VerbSelect, q.Verb)
	assert.Equal(t, "users", q.Table)
	assert.Equal(t, RangeAll, q.Keys.Kind)
	assert.Nil(t, q.Columns)
}

func TestParseSelectKeyRange(t *testing.T) {
	qs, err := Parse(`select(table: users, keys: 10..20)`)
	require.NoError(t, err)
	q := qs[0]
	assert.Equal(t, RangeSpan, q.Keys.Kind)
	assert.Equal(t, "10", q.Keys.From)
	assert.Equal(t, "20", q.Keys.To)
}

func TestParseSelectKeyList(t *testing.T) {
	qs, err := Parse(`SELECT(table: users, keys: (1, 2, 3))`)
	require.NoError(t, err)
	q := qs[0]
	assert.Equal(t, RangeList, q.Keys.Kind)
	assert.Equal(t, []string{"1", "2", "3"}, q.Keys.List)
}

func TestParseSelectColumnsList(t *testing.T) {
	qs, err := Parse(`SELECT(table: users, columns: (name, age))`)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, qs[0].Columns)
}

func TestParseConditionsSnakeCaseOps(t *testing.T) {
	qs, err := Parse(`SELECT(table: users, conditions: (name starts_with "A" AND age greater_than 30))`)
	require.NoError(t, err)
	cond := qs[0].Conditions
	require.Len(t, cond.Conds, 2)
	assert.Equal(t, TestStarts, cond.Conds[0].Test)
	assert.Equal(t, "A", cond.Conds[0].Value)
	assert.Equal(t, TestGreater, cond.Conds[1].Test)
	require.Len(t, cond.Ops, 1)
	assert.Equal(t, LogicAnd, cond.Ops[0])
}

func TestParseConditionsOrChain(t *testing.T) {
	qs, err := Parse(`SELECT(table: users, conditions: (age less_than 10 OR age greater_than 90))`)
	require.NoError(t, err)
	cond := qs[0].Conditions
	require.Len(t, cond.Conds, 2)
	require.Len(t, cond.Ops, 1)
	assert.Equal(t, LogicOr, cond.Ops[0])
}

func TestParseUpdateSymbolicOps(t *testing.T) {
	qs, err := Parse(`UPDATE(table: products, keys: *, updates: ((price += 100), (stock -= 1)))`)
	require.NoError(t, err)
	updates := qs[0].Updates
	require.Len(t, updates, 2)
	assert.Equal(t, "price", updates[0].Attribute)
	assert.Equal(t, OpPlusEquals, updates[0].Op)
	assert.Equal(t, "100", updates[0].Value)
	assert.Equal(t, "stock", updates[1].Attribute)
	assert.Equal(t, OpMinusEquals, updates[1].Op)
}

func TestParseUpdateTextOps(t *testing.T) {
	qs, err := Parse(`UPDATE(table: products, keys: *, updates: ((name APPEND "!")))`)
	require.NoError(t, err)
	assert.Equal(t, OpAppend, qs[0].Updates[0].Op)
}

func TestParseInsertCSVData(t *testing.T) {
	qs, err := Parse(`INSERT(table: widgets, data: "id,int-p;name,text\n1;foo\n2;bar")`)
	require.NoError(t, err)
	q := qs[0]
	require.NotNil(t, q.InsertRows)
	assert.Equal(t, 2, q.InsertRows.RowCount())
}

func TestParseChainedQueries(t *testing.T) {
	qs, err := Parse(`SELECT(table: widgets, keys: *) -> SELECT(table: __RESULT__, columns: (name))`)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.True(t, qs[1].RefersToResult())
}

func TestParseLeftJoin(t *testing.T) {
	qs, err := Parse(`LEFT_JOIN(table: orders, right: customers, on: (customer_id, id))`)
	require.NoError(t, err)
	q := qs[0]
	assert.Equal(t, "customers", q.RightTable)
	assert.Equal(t, "customer_id", q.JoinLeftCol)
	assert.Equal(t, "id", q.JoinRightCol)
}

func TestParseSummary(t *testing.T) {
	qs, err := Parse(`SUMMARY(table: sales, statistics: (amount: (SUM, MEAN)))`)
	require.NoError(t, err)
	stats := qs[0].Statistics
	require.Len(t, stats, 1)
	assert.Equal(t, "amount", stats[0].Column)
	assert.ElementsMatch(t, []StatAction{StatSum, StatMean}, stats[0].Actions)
}

func TestParseUnimplementedVerbs(t *testing.T) {
	for _, src := range []string{
		`CREATE(table: t)`,
		`INNER_JOIN(table: t, right: u, on: (a, b))`,
		`RIGHT_JOIN(table: t, right: u, on: (a, b))`,
		`FULL_JOIN(table: t, right: u, on: (a, b))`,
	} {
		_, err := Parse(src)
		require.Error(t, err)
		assert.True(t, ezerr.Is(err, ezerr.Unimplemented), "expected Unimplemented for %q, got %v", src, err)
	}
}

func TestParseUnknownVerb(t *testing.T) {
	_, err := Parse(`FROBNICATE(table: t)`)
	assert.Error(t, err)
}

func TestParseMissingOpenParen(t *testing.T) {
	_, err := Parse(`SELECT table: t)`)
	assert.Error(t, err)
}

func TestParseUnbalancedParens(t *testing.T) {
	_, err := Parse(`SELECT(table: t`)
	assert.Error(t, err)
}

func TestParseTrailingTextAfterClose(t *testing.T) {
	_, err := Parse(`SELECT(table: t) garbage`)
	assert.Error(t, err)
}

func TestParseMissingRequiredArgument(t *testing.T) {
	_, err := Parse(`SELECT()`)
	assert.Error(t, err)
}
