package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHeaderSortsByName(t *testing.T) {
	h, err := NewHeader([]HeaderItem{
		{Name: "zeta", Kind: ColumnInt, Key: KeyPrimary},
		{Name: "alpha", Kind: ColumnText},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, h.Names())
}

func TestNewHeaderRejectsDuplicateNamesCaseInsensitive(t *testing.T) {
	_, err := NewHeader([]HeaderItem{
		{Name: "id", Kind: ColumnInt, Key: KeyPrimary},
		{Name: "ID", Kind: ColumnText},
	})
	assert.Error(t, err)
}

func TestNewHeaderRequiresExactlyOnePrimary(t *testing.T) {
	_, err := NewHeader([]HeaderItem{
		{Name: "id", Kind: ColumnInt},
		{Name: "name", Kind: ColumnText},
	})
	assert.Error(t, err)

	_, err = NewHeader([]HeaderItem{
		{Name: "id", Kind: ColumnInt, Key: KeyPrimary},
		{Name: "code", Kind: ColumnInt, Key: KeyPrimary},
	})
	assert.Error(t, err)
}

func TestNewHeaderRejectsFloatPrimary(t *testing.T) {
	_, err := NewHeader([]HeaderItem{
		{Name: "id", Kind: ColumnFloat, Key: KeyPrimary},
	})
	assert.Error(t, err)
}

func TestNewHeaderRejectsOverlongName(t *testing.T) {
	longName := make([]byte, 65)
	for i := range longName {
		longName[i] = 'a'
	}
	_, err := NewHeader([]HeaderItem{
		{Name: string(longName), Kind: ColumnInt, Key: KeyPrimary},
	})
	assert.Error(t, err)
}

func TestHeaderFindAndPrimary(t *testing.T) {
	h, err := NewHeader([]HeaderItem{
		{Name: "id", Kind: ColumnInt, Key: KeyPrimary},
		{Name: "name", Kind: ColumnText},
	})
	require.NoError(t, err)

	item, ok := h.Find("name")
	require.True(t, ok)
	assert.Equal(t, ColumnText, item.Kind)

	_, ok = h.Find("missing")
	assert.False(t, ok)

	assert.Equal(t, "id", h.Primary().Name)
}

func TestHeaderEqual(t *testing.T) {
	a, _ := NewHeader([]HeaderItem{{Name: "id", Kind: ColumnInt, Key: KeyPrimary}})
	b, _ := NewHeader([]HeaderItem{{Name: "id", Kind: ColumnInt, Key: KeyPrimary}})
	c, _ := NewHeader([]HeaderItem{{Name: "id", Kind: ColumnText, Key: KeyPrimary}})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
