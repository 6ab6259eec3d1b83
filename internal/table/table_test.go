package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ezdb/internal/keystring"
)

func intPrimaryHeader(t *testing.T) Header {
	t.Helper()
	h, err := NewHeader([]HeaderItem{
		{Name: "id", Kind: ColumnInt, Key: KeyPrimary},
		{Name: "name", Kind: ColumnText},
	})
	require.NoError(t, err)
	return h
}

func buildSortedTable(t *testing.T, ids []int32) *EZTable {
	t.Helper()
	tbl, err := New("widgets", intPrimaryHeader(t))
	require.NoError(t, err)
	idCol := tbl.Columns["id"]
	nameCol := tbl.Columns["name"]
	for _, id := range ids {
		idCol.Ints = append(idCol.Ints, id)
		nameCol.Texts = append(nameCol.Texts, keystring.MustFrom("n"))
	}
	return tbl
}

func TestNewTableAllocatesColumnsPerHeaderEntry(t *testing.T) {
	tbl, err := New("t", intPrimaryHeader(t))
	require.NoError(t, err)
	assert.Len(t, tbl.Columns, 2)
	assert.Equal(t, 0, tbl.RowCount())
}

func TestValidateAcceptsStrictlyAscendingPrimary(t *testing.T) {
	tbl := buildSortedTable(t, []int32{1, 2, 3})
	assert.NoError(t, tbl.Validate())
}

func TestValidateRejectsNonAscendingPrimary(t *testing.T) {
	tbl := buildSortedTable(t, []int32{1, 3, 2})
	assert.Error(t, tbl.Validate())
}

func TestValidateRejectsDuplicatePrimary(t *testing.T) {
	tbl := buildSortedTable(t, []int32{1, 1, 2})
	assert.Error(t, tbl.Validate())
}

func TestValidateRejectsMismatchedColumnLengths(t *testing.T) {
	tbl := buildSortedTable(t, []int32{1, 2})
	tbl.Columns["name"].Texts = tbl.Columns["name"].Texts[:1]
	assert.Error(t, tbl.Validate())
}

func TestBinarySearchFound(t *testing.T) {
	tbl := buildSortedTable(t, []int32{10, 20, 30, 40})
	idx, found := tbl.BinarySearch(PKValue{Kind: ColumnInt, I: 30})
	require.True(t, found)
	assert.Equal(t, 2, idx)
}

func TestBinarySearchInsertionPoint(t *testing.T) {
	tbl := buildSortedTable(t, []int32{10, 20, 40})
	idx, found := tbl.BinarySearch(PKValue{Kind: ColumnInt, I: 30})
	assert.False(t, found)
	assert.Equal(t, 2, idx)
}

func TestPKAt(t *testing.T) {
	tbl := buildSortedTable(t, []int32{5, 6})
	v, err := tbl.PKAt(1)
	require.NoError(t, err)
	assert.Equal(t, int32(6), v.I)
}

func TestMetadataTouch(t *testing.T) {
	var m Metadata
	m.Touch(100)
	m.Touch(200)
	assert.Equal(t, uint64(200), m.LastAccess())
	assert.Equal(t, uint64(2), m.TimesAccessed())
}

func TestTableString(t *testing.T) {
	tbl := buildSortedTable(t, []int32{1})
	assert.Contains(t, tbl.String(), "widgets")
}
