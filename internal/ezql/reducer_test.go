package ezql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyRangeDefaultsToAll(t *testing.T) {
	kr, err := parseKeyRange("")
	require.NoError(t, err)
	assert.Equal(t, RangeAll, kr.Kind)
}

func TestParseKeyRangeQuotedSpan(t *testing.T) {
	kr, err := parseKeyRange(`"alice".."bob"`)
	require.NoError(t, err)
	assert.Equal(t, RangeSpan, kr.Kind)
	assert.Equal(t, "alice", kr.From)
	assert.Equal(t, "bob", kr.To)
}

func TestParseNameListQuotedTokens(t *testing.T) {
	names, err := parseNameList(`("a b", c)`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a b", "c"}, names)
}

func TestParseNameListEmpty(t *testing.T) {
	names, err := parseNameList("")
	require.NoError(t, err)
	assert.Nil(t, names)
}

func TestParseConditionsEmptyMatchesEverything(t *testing.T) {
	c, err := parseConditions("")
	require.NoError(t, err)
	assert.Empty(t, c.Conds)
}

func TestParseConditionsRejectsBadTokenCount(t *testing.T) {
	_, err := parseConditions("(name EQUALS)")
	assert.Error(t, err)
}

func TestParseConditionsRejectsUnknownLogicOp(t *testing.T) {
	_, err := parseConditions("(a EQUALS b XOR c EQUALS d)")
	assert.Error(t, err)
}

func TestParseConditionsRejectsUnknownTestOp(t *testing.T) {
	_, err := parseConditions("(a FUZZY b)")
	assert.Error(t, err)
}

func TestParseUpdatesRejectsEmpty(t *testing.T) {
	_, err := parseUpdates("")
	assert.Error(t, err)
}

func TestParseUpdatesRejectsUnknownOp(t *testing.T) {
	_, err := parseUpdates("((col ??? val))")
	assert.Error(t, err)
}

func TestParseStatisticsRejectsUnknownAction(t *testing.T) {
	_, err := parseStatistics("(amount: (BOGUS))")
	assert.Error(t, err)
}

func TestStatisticSortActionsCanonicalOrder(t *testing.T) {
	s := Statistic{Column: "x", Actions: []StatAction{StatStdev, StatSum, StatMean}}
	assert.Equal(t, []StatAction{StatSum, StatMean, StatStdev}, s.SortActions())
}

func TestUnescapeCSV(t *testing.T) {
	assert.Equal(t, "a,b\nc,d", unescapeCSV(`a,b\nc,d`))
}
