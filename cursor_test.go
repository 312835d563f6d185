package keystore_test

import (
	"testing"

	"github.com/lleo/go-keystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorStates(t *testing.T) {
	ks := mustFromPairs(t, [][2]any{{"a", 1}, {"b", 2}})
	c := ks.Cursor()
	require.Equal(t, 2, c.Len())

	assert.False(t, c.Valid(), "unstarted")
	assert.Nil(t, c.Key())
	assert.Nil(t, c.Value())

	c.Advance()
	assert.True(t, c.Valid())
	assert.Equal(t, "a", c.Key())
	assert.Equal(t, 1, c.Value())

	c.Advance()
	assert.Equal(t, "b", c.Key())
	assert.Equal(t, 2, c.Value())

	c.Advance()
	assert.False(t, c.Valid(), "exhausted")
	assert.Nil(t, c.Key())

	c.Advance()
	c.Advance()
	assert.False(t, c.Valid(), "still exhausted")

	c.Restart()
	assert.False(t, c.Valid())
	c.Advance()
	assert.Equal(t, "a", c.Key())
}

func TestCursorEmpty(t *testing.T) {
	c := keystore.New().Cursor()
	assert.Equal(t, 0, c.Len())
	c.Advance()
	assert.False(t, c.Valid())
	assert.Nil(t, c.Value())
}

func TestCursorIsSnapshot(t *testing.T) {
	ks := mustFromPairs(t, [][2]any{{"a", 1}, {"b", 2}})
	c := keystore.NewCursor(ks)

	require.NoError(t, ks.Set("c", 3))
	require.NoError(t, ks.Remove("a"))
	require.NoError(t, ks.Set("b", 20))

	var keys, vals []any
	for c.Advance(); c.Valid(); c.Advance() {
		keys = append(keys, c.Key())
		vals = append(vals, c.Value())
	}
	assert.Equal(t, []any{"a", "b"}, keys)
	assert.Equal(t, []any{1, 2}, vals)
}

func TestCursorMatchesAll(t *testing.T) {
	ks := mustFromPairs(t, [][2]any{{3, "c"}, {1, "a"}, {2, "b"}})

	var fromCursor, fromAll []keystore.Pair
	for c := ks.Cursor(); ; {
		c.Advance()
		if !c.Valid() {
			break
		}
		fromCursor = append(fromCursor, keystore.Pair{Key: c.Key(), Value: c.Value()})
	}
	for k, v := range ks.All() {
		fromAll = append(fromAll, keystore.Pair{Key: k, Value: v})
	}
	assert.Equal(t, ks.ToPairs(), fromCursor)
	assert.Equal(t, fromCursor, fromAll)
}
