package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vocabtree/tree"
)

func TestNewDirectIndex(t *testing.T) {
	d, err := NewDirectIndex(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Level())

	_, err = NewDirectIndex(-1, 3)
	assert.ErrorIs(t, err, tree.ErrInvalidParams)

	_, err = NewDirectIndex(3, 3)
	assert.ErrorIs(t, err, tree.ErrInvalidParams)
}

func TestDirectIndexInsertLookup(t *testing.T) {
	d, err := NewDirectIndex(0, 2)
	require.NoError(t, err)

	d.Insert(0, 1, 0)
	d.Insert(0, 1, 3)
	d.Insert(0, 0, 2)
	d.Insert(1, 1, 7)

	assert.Equal(t, []int{0, 3}, d.Lookup(0, 1))
	assert.Equal(t, []int{2}, d.Lookup(0, 0))
	assert.Equal(t, []int{7}, d.Lookup(1, 1))
	assert.Nil(t, d.Lookup(0, 5))
	assert.Nil(t, d.Lookup(9, 0))
	assert.Equal(t, 2, d.NumImages())
}

func TestDirectIndexRemove(t *testing.T) {
	d, err := NewDirectIndex(0, 2)
	require.NoError(t, err)

	d.Insert(0, 0, 1)
	d.Remove(0)

	assert.Nil(t, d.Lookup(0, 0))
	assert.Equal(t, 0, d.NumImages())
}

func TestDirectIndexSaveLoad(t *testing.T) {
	d, err := NewDirectIndex(1, 4)
	require.NoError(t, err)

	d.Insert(0, 2, 0)
	d.Insert(0, 2, 5)
	d.Insert(1, 0, 1)
	d.Insert(2, 3, 4)

	path := filepath.Join(t.TempDir(), "direct.gz")
	require.NoError(t, d.Save(path))

	loaded, err := LoadDirectIndex(path)
	require.NoError(t, err)

	assert.Equal(t, 1, loaded.Level())
	assert.Equal(t, 3, loaded.NumImages())
	assert.Equal(t, []int{0, 5}, loaded.Lookup(0, 2))
	assert.Equal(t, []int{1}, loaded.Lookup(1, 0))
	assert.Equal(t, []int{4}, loaded.Lookup(2, 3))
	assert.Nil(t, loaded.Lookup(0, 1))
}
