// Package artifacttest provides the behavioural contract shared by every
// core.ArtifactStore backend.
package artifacttest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripmesh/artifact"
	"github.com/hupe1980/tripmesh/core"
)

// RunStoreContract exercises save/get/list/delete semantics against store.
func RunStoreContract(t *testing.T, store core.ArtifactStore) {
	t.Helper()

	ctx := context.Background()

	t.Run("Save and Get", func(t *testing.T) {
		data := []byte("# Day 1\nMuseum")
		require.NoError(t, store.Save(ctx, "s1", "itinerary-a.md", data))

		data[0] = 'X'

		got, err := store.Get(ctx, "s1", "itinerary-a.md")
		require.NoError(t, err)
		assert.Equal(t, "# Day 1\nMuseum", string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "s1", "itinerary-a.md", []byte("v2")))

		got, err := store.Get(ctx, "s1", "itinerary-a.md")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got))
	})

	t.Run("Get Missing", func(t *testing.T) {
		_, err := store.Get(ctx, "s1", "nope.md")
		assert.ErrorIs(t, err, artifact.ErrNotFound)

		_, err = store.Get(ctx, "other", "itinerary-a.md")
		assert.ErrorIs(t, err, artifact.ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "s1", "itinerary-b.md", []byte("b")))

		ids, err := store.List(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []string{"itinerary-a.md", "itinerary-b.md"}, ids)

		ids, err = store.List(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "s1", "itinerary-b.md"))

		_, err := store.Get(ctx, "s1", "itinerary-b.md")
		assert.ErrorIs(t, err, artifact.ErrNotFound)

		assert.ErrorIs(t, store.Delete(ctx, "s1", "itinerary-b.md"), artifact.ErrNotFound)
	})
}
