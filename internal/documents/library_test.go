package documents

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag-lab/server/internal/domain"
)

func TestLibrary_Collections(t *testing.T) {
	ctx := context.Background()
	f := setupProcessor(t, nil)

	_, err := f.library.CreateCollection(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	c, err := f.library.CreateCollection(ctx, " Research ")
	require.NoError(t, err)
	assert.Equal(t, "Research", c.Name)
	assert.DirExists(t, filepath.Join(f.library.uploadsDir, c.ID))

	renamed, err := f.library.RenameCollection(ctx, c.ID, "Papers")
	require.NoError(t, err)
	assert.Equal(t, "Papers", renamed.Name)

	_, err = f.library.RenameCollection(ctx, "missing", "Papers")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := f.library.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Papers", list[0].Name)
}

func TestLibrary_StoreDocument(t *testing.T) {
	ctx := context.Background()
	f := setupProcessor(t, nil)
	c, err := f.library.CreateCollection(ctx, "Reports")
	require.NoError(t, err)

	doc, err := f.library.StoreDocument(ctx, c.ID, `C:\uploads\q3 report.txt`, "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)

	assert.Equal(t, "q3 report.txt", doc.OriginalName)
	assert.Equal(t, doc.ID+"_q3 report.txt", doc.FileName)
	assert.EqualValues(t, 5, doc.Size)
	data, err := os.ReadFile(filepath.Join(f.library.uploadsDir, c.ID, doc.FileName))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = f.library.StoreDocument(ctx, "missing", "a.txt", "text/plain", strings.NewReader("x"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	docs, err := f.library.ListDocuments(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.False(t, docs[0].Embedded)
}

func TestLibrary_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	f := setupProcessor(t, nil)
	doc := f.addDocument(t, "", sampleText)
	keep := f.addDocument(t, doc.CollectionID, sampleText)

	_, err := f.processor.EmbedDocument(ctx, doc.ID)
	require.NoError(t, err)
	kept, err := f.processor.EmbedDocument(ctx, keep.ID)
	require.NoError(t, err)

	require.NoError(t, f.library.DeleteDocument(ctx, doc.ID))

	_, err = f.library.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoFileExists(t, filepath.Join(f.library.uploadsDir, doc.CollectionID, doc.FileName))
	assert.NotContains(t, f.vectorDocs(t, doc.CollectionID), doc.ID)
	assert.Equal(t, kept.ChunksCreated, f.vectors.Len())

	// Deleting again is a no-op.
	assert.NoError(t, f.library.DeleteDocument(ctx, doc.ID))
}

func TestLibrary_DeleteCollection(t *testing.T) {
	ctx := context.Background()
	f := setupProcessor(t, nil)
	doc := f.addDocument(t, "", sampleText)
	other := f.addDocument(t, "", sampleText)

	_, err := f.processor.EmbedDocument(ctx, doc.ID)
	require.NoError(t, err)
	kept, err := f.processor.EmbedDocument(ctx, other.ID)
	require.NoError(t, err)

	require.NoError(t, f.library.DeleteCollection(ctx, doc.CollectionID))

	assert.NoDirExists(t, filepath.Join(f.library.uploadsDir, doc.CollectionID))
	_, err = f.library.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.vectorDocs(t, doc.CollectionID))
	assert.Equal(t, kept.ChunksCreated, f.vectors.Len())

	assert.ErrorIs(t, f.library.DeleteCollection(ctx, doc.CollectionID), domain.ErrNotFound)
}

func TestLibrary_Stats(t *testing.T) {
	ctx := context.Background()
	f := setupProcessor(t, nil)
	doc := f.addDocument(t, "", sampleText)
	f.addDocument(t, doc.CollectionID, sampleText)

	result, err := f.processor.EmbedDocument(ctx, doc.ID)
	require.NoError(t, err)

	stats, err := f.library.Stats(ctx, doc.CollectionID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, result.ChunksCreated, stats.Chunks)
	assert.Equal(t, result.ChunksCreated, stats.Embeddings)

	docs, err := f.library.ListDocuments(ctx, doc.CollectionID)
	require.NoError(t, err)
	embedded := 0
	for _, d := range docs {
		if d.Embedded {
			embedded++
		}
	}
	assert.Equal(t, 1, embedded)
}
