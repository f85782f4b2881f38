// Package storetest holds behaviour tests shared by every vectorstore.Store
// implementation.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag-lab/server/internal/domain"
	"github.com/rag-lab/server/internal/vectorstore"
)

// Factory returns a fresh, uninitialized store.
type Factory func(t *testing.T) vectorstore.Store

func row(chunk, doc, coll string, v ...float32) vectorstore.Row {
	return vectorstore.Row{
		ChunkID:      chunk,
		DocumentID:   doc,
		CollectionID: coll,
		Content:      "content of " + chunk,
		Vector:       v,
	}
}

// Run exercises the Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("search before first upsert is empty", func(t *testing.T) {
		s := newStore(t)

		results, err := s.Search(ctx, []float32{1, 2, 3}, "c1", 5)

		require.NoError(t, err)
		assert.Empty(t, results)
		assert.NoError(t, s.DeleteByDocument(ctx, "d1"))
		assert.NoError(t, s.DeleteByCollection(ctx, "c1"))
	})

	t.Run("search is ordered by distance and scoped to the collection", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, []vectorstore.Row{
			row("k3", "d1", "c1", 3, 0, 0),
			row("k1", "d1", "c1", 1, 0, 0),
			row("k2", "d2", "c1", 2, 0, 0),
			row("x1", "d9", "c2", 1, 0, 0),
		}))

		results, err := s.Search(ctx, []float32{0, 0, 0}, "c1", 5)

		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "k1", results[0].ChunkID)
		assert.Equal(t, "k2", results[1].ChunkID)
		assert.Equal(t, "k3", results[2].ChunkID)
		assert.Equal(t, "d2", results[1].DocumentID)
		assert.Equal(t, "content of k1", results[0].Content)
		assert.InDelta(t, 1.0, results[0].Distance, 1e-6)
		assert.InDelta(t, 3.0, results[2].Distance, 1e-6)
	})

	t.Run("limit", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, []vectorstore.Row{
			row("a", "d1", "c1", 1, 1),
			row("b", "d1", "c1", 2, 2),
			row("c", "d1", "c1", 3, 3),
		}))

		results, err := s.Search(ctx, []float32{0, 0}, "c1", 2)

		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].ChunkID)
	})

	t.Run("collection filter is not interpolated", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, []vectorstore.Row{
			row("a", "d1", "c1", 1, 1),
		}))

		results, err := s.Search(ctx, []float32{0, 0}, "x' OR '1'='1", 5)

		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("upsert replaces by chunk id", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, []vectorstore.Row{row("a", "d1", "c1", 5, 5)}))
		updated := row("a", "d1", "c1", 1, 1)
		updated.Content = "updated"
		require.NoError(t, s.Upsert(ctx, []vectorstore.Row{updated}))

		results, err := s.Search(ctx, []float32{0, 0}, "c1", 5)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "updated", results[0].Content)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, []vectorstore.Row{row("a", "d1", "c1", 1, 1, 1)}))

		err := s.Upsert(ctx, []vectorstore.Row{row("b", "d1", "c1", 1, 1)})

		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("delete by document", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, []vectorstore.Row{
			row("a", "d1", "c1", 1, 1),
			row("b", "d1", "c1", 2, 2),
			row("c", "d2", "c1", 3, 3),
		}))

		require.NoError(t, s.DeleteByDocument(ctx, "d1"))
		results, err := s.Search(ctx, []float32{0, 0}, "c1", 10)

		require.NoError(t, err)
		require.Len(t, results, 1)
		for _, r := range results {
			assert.NotEqual(t, "d1", r.DocumentID)
		}
	})

	t.Run("delete by collection", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, []vectorstore.Row{
			row("a", "d1", "c1", 1, 1),
			row("b", "d2", "c2", 2, 2),
		}))

		require.NoError(t, s.DeleteByCollection(ctx, "c1"))

		gone, err := s.Search(ctx, []float32{0, 0}, "c1", 10)
		require.NoError(t, err)
		assert.Empty(t, gone)

		kept, err := s.Search(ctx, []float32{0, 0}, "c2", 10)
		require.NoError(t, err)
		assert.Len(t, kept, 1)
	})
}
