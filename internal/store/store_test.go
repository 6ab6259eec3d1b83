package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ezdb/internal/table"
)

func sampleHeader(t *testing.T) table.Header {
	t.Helper()
	h, err := table.NewHeader([]table.HeaderItem{
		{Name: "id", Kind: table.ColumnInt, Key: table.KeyPrimary},
	})
	require.NoError(t, err)
	return h
}

func TestAcquireReadUnknownTable(t *testing.T) {
	db := New()
	_, _, err := db.AcquireRead("missing")
	assert.Error(t, err)
}

func TestAcquireWriteOrCreateCreatesOnce(t *testing.T) {
	db := New()
	t1, release1, err := db.AcquireWriteOrCreate("widgets", sampleHeader(t))
	require.NoError(t, err)
	release1()

	t2, release2, err := db.AcquireWriteOrCreate("widgets", sampleHeader(t))
	require.NoError(t, err)
	release2()

	assert.Same(t, t1, t2)
}

func TestAcquireWriteOrCreateMarksNewTableDirty(t *testing.T) {
	db := New()
	_, release, err := db.AcquireWriteOrCreate("widgets", sampleHeader(t))
	require.NoError(t, err)
	release()

	assert.Equal(t, []string{"widgets"}, db.DrainDirty())
}

func TestAcquireWriteOrCreateExistingDoesNotReDirty(t *testing.T) {
	db := New()
	_, release, err := db.AcquireWriteOrCreate("widgets", sampleHeader(t))
	require.NoError(t, err)
	release()
	db.DrainDirty()

	_, release2, err := db.AcquireWriteOrCreate("widgets", sampleHeader(t))
	require.NoError(t, err)
	release2()

	assert.Empty(t, db.DrainDirty())
}

func TestAddTableRejectsDuplicate(t *testing.T) {
	db := New()
	tbl, err := table.New("widgets", sampleHeader(t))
	require.NoError(t, err)
	require.NoError(t, db.AddTable(tbl))
	assert.Error(t, db.AddTable(tbl))
}

func TestTableNames(t *testing.T) {
	db := New()
	tbl, err := table.New("widgets", sampleHeader(t))
	require.NoError(t, err)
	require.NoError(t, db.AddTable(tbl))
	assert.Equal(t, []string{"widgets"}, db.TableNames())
}

func TestMarkDirtyAndDrainDirty(t *testing.T) {
	db := New()
	db.MarkDirty("a")
	db.MarkDirty("b")
	db.MarkDirty("a")
	names := db.DrainDirty()
	assert.ElementsMatch(t, []string{"a", "b"}, names)
	assert.Empty(t, db.DrainDirty())
}

func TestConcurrentAcquireDistinctTablesDoNotBlock(t *testing.T) {
	db := New()
	tblA, err := table.New("a", sampleHeader(t))
	require.NoError(t, err)
	tblB, err := table.New("b", sampleHeader(t))
	require.NoError(t, err)
	require.NoError(t, db.AddTable(tblA))
	require.NoError(t, db.AddTable(tblB))

	var wg sync.WaitGroup
	for _, name := range []string{"a", "b"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, release, err := db.AcquireWrite(name)
				assert.NoError(t, err)
				release()
			}
		}(name)
	}
	wg.Wait()
}
