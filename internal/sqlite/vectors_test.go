package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag-lab/server/internal/vectorstore"
	"github.com/rag-lab/server/internal/vectorstore/storetest"
)

func TestVectorStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) vectorstore.Store {
		v, err := NewVectorStore(context.Background(), setupTestStore(t))
		require.NoError(t, err)
		return v
	})
}

func TestVectorStore_DiscoversExistingIndex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rag-lab.db")

	s, err := Open(path)
	require.NoError(t, err)
	v, err := NewVectorStore(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, vectorstore.Uninitialized, v.State())

	require.NoError(t, v.Upsert(ctx, []vectorstore.Row{
		{ChunkID: "a", DocumentID: "d", CollectionID: "c", Content: "hello", Vector: []float32{0.5, -1.25, 3}},
	}))
	assert.Equal(t, vectorstore.Ready, v.State())
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	v, err = NewVectorStore(ctx, s)
	require.NoError(t, err)

	assert.Equal(t, vectorstore.Ready, v.State())
	assert.Equal(t, 3, v.Dimensions())
	results, err := v.Search(ctx, []float32{0.5, -1.25, 3}, "c", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hello", results[0].Content)
	assert.InDelta(t, 0, results[0].Distance, 1e-9)
}

func TestVectorEncoding(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, 3.4028235e38}
	assert.Equal(t, vec, decodeVector(encodeVector(vec)))
}
