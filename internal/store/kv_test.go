package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVCreateAndRead(t *testing.T) {
	db := New()
	require.NoError(t, db.KVCreate("k", []byte("v")))
	v, err := db.KVRead("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func TestKVCreateRejectsDuplicate(t *testing.T) {
	db := New()
	require.NoError(t, db.KVCreate("k", []byte("v")))
	assert.Error(t, db.KVCreate("k", []byte("v2")))
}

func TestKVReadMissingErrors(t *testing.T) {
	db := New()
	_, err := db.KVRead("missing")
	assert.Error(t, err)
}

func TestKVReadReturnsIndependentCopy(t *testing.T) {
	db := New()
	require.NoError(t, db.KVCreate("k", []byte("v")))
	v, err := db.KVRead("k")
	require.NoError(t, err)
	v[0] = 'X'
	v2, err := db.KVRead("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v2)
}

func TestKVUpdateRequiresExisting(t *testing.T) {
	db := New()
	assert.Error(t, db.KVUpdate("missing", []byte("v")))
	require.NoError(t, db.KVCreate("k", []byte("v")))
	require.NoError(t, db.KVUpdate("k", []byte("v2")))
	v, err := db.KVRead("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)
}

func TestKVDeleteReturnsPriorValue(t *testing.T) {
	db := New()
	require.NoError(t, db.KVCreate("k", []byte("v")))
	prior, err := db.KVDelete("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), prior)

	_, err = db.KVRead("k")
	assert.Error(t, err)
}

func TestKVDeleteMissingErrors(t *testing.T) {
	db := New()
	_, err := db.KVDelete("missing")
	assert.Error(t, err)
}
