// Package storetest provides a conformance suite run against every
// storage.Store implementation.
package storetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digital-Defiance/walletsession/storage"
)

// Run exercises the common Store contract against the given implementation.
func Run(t *testing.T, store storage.Store) {
	t.Helper()

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, store.Set("authToken", "tok-1"))
		v, err := store.Get("authToken")
		require.NoError(t, err)
		assert.Equal(t, "tok-1", v)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get("no-such-key")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Set("k", "v1"))
		require.NoError(t, store.Set("k", "v2"))
		v, err := store.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v2", v)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Set("doomed", "x"))
		require.NoError(t, store.Delete("doomed"))
		_, err := store.Get("doomed")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		assert.NoError(t, store.Delete("never-existed"))
	})

	t.Run("Has", func(t *testing.T) {
		assert.False(t, store.Has("flag"))
		require.NoError(t, store.Set("flag", ""))
		assert.True(t, store.Has("flag"))
	})

	t.Run("EmptyValue", func(t *testing.T) {
		require.NoError(t, store.Set("empty", ""))
		v, err := store.Get("empty")
		require.NoError(t, err)
		assert.Equal(t, "", v)
	})
}
