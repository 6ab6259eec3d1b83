package persist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ezdb/internal/table"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p, err := NewDirPersister(dir)
	require.NoError(t, err)

	tbl, err := table.FromCSVString("widgets", "id,int-p;name,text\n1;alpha\n2;beta\n")
	require.NoError(t, err)

	require.NoError(t, p.SaveTable("widgets", tbl))

	loaded, err := p.LoadTable("widgets")
	require.NoError(t, err)
	assert.True(t, tbl.Header.Equal(loaded.Header))
	assert.Equal(t, tbl.Columns["id"].Ints, loaded.Columns["id"].Ints)
}

func TestLoadTableMissingErrors(t *testing.T) {
	dir := t.TempDir()
	p, err := NewDirPersister(dir)
	require.NoError(t, err)
	_, err = p.LoadTable("ghost")
	assert.Error(t, err)
}

func TestSaveTableOverwritesPriorFile(t *testing.T) {
	dir := t.TempDir()
	p, err := NewDirPersister(dir)
	require.NoError(t, err)

	first, err := table.FromCSVString("widgets", "id,int-p\n1\n")
	require.NoError(t, err)
	require.NoError(t, p.SaveTable("widgets", first))

	second, err := table.FromCSVString("widgets", "id,int-p\n1\n2\n")
	require.NoError(t, err)
	require.NoError(t, p.SaveTable("widgets", second))

	loaded, err := p.LoadTable("widgets")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.RowCount())
}

func TestNewDirPersisterCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	_, err := NewDirPersister(dir)
	require.NoError(t, err)
}
