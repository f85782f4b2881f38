package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag-lab/server/internal/domain"
	"github.com/rag-lab/server/internal/logger"
	"github.com/rag-lab/server/internal/vectorstore"
)

// keywordEmbedder maps texts onto a tiny fixed vocabulary.
type keywordEmbedder struct {
	err error
}

var vocabulary = []string{"revenue", "dividend", "hiring"}

func (e keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	text = strings.ToLower(text)
	v := make([]float32, len(vocabulary))
	for i, word := range vocabulary {
		if strings.Contains(text, word) {
			v[i] = 1
		}
	}
	return v, nil
}

type fakeLookup map[string]string

func (f fakeLookup) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	name, ok := f[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.Document{ID: id, OriginalName: name}, nil
}

type fakeGenerator struct {
	answer string
	err    error
	calls  int
	system string
	user   string
}

func (g *fakeGenerator) Generate(_ context.Context, system, user string) (string, error) {
	g.calls++
	g.system = system
	g.user = user
	return g.answer, g.err
}

func (g *fakeGenerator) Model() string { return "fake" }

func seededStore(t *testing.T) *vectorstore.Memory {
	t.Helper()
	store := vectorstore.NewMemory()
	require.NoError(t, store.Upsert(context.Background(), []vectorstore.Row{
		{ChunkID: "k1", DocumentID: "d1", CollectionID: "c1", Content: "Revenue grew by twelve percent.", Vector: []float32{1, 0, 0}},
		{ChunkID: "k2", DocumentID: "d1", CollectionID: "c1", Content: "Revenue and hiring both rose.", Vector: []float32{1, 0, 1}},
		{ChunkID: "k3", DocumentID: "d2", CollectionID: "c1", Content: "The dividend is forty cents.", Vector: []float32{0, 1, 0}},
		{ChunkID: "k4", DocumentID: "gone", CollectionID: "c1", Content: "Orphaned revenue notes.", Vector: []float32{1, 1, 1}},
		{ChunkID: "x1", DocumentID: "d9", CollectionID: "c2", Content: "Other collection revenue.", Vector: []float32{1, 0, 0}},
	}))
	return store
}

func newService(t *testing.T, gen *fakeGenerator, topK int) *Service {
	t.Helper()
	lookup := fakeLookup{"d1": "report.pdf", "d2": "minutes.txt", "d9": "other.txt"}
	retriever := NewRetriever(keywordEmbedder{}, seededStore(t), lookup, topK)
	return NewService(retriever, gen, logger.Nop())
}

func TestRetriever_Search(t *testing.T) {
	ctx := context.Background()
	lookup := fakeLookup{"d1": "report.pdf", "d2": "minutes.txt"}
	r := NewRetriever(keywordEmbedder{}, seededStore(t), lookup, 0)
	assert.Equal(t, DefaultTopK, r.TopK())

	hits, err := r.Search(ctx, "What happened to revenue?", "c1", 2)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "k1", hits[0].ChunkID)
	assert.Equal(t, "report.pdf", hits[0].DocumentName)
	assert.Zero(t, hits[0].Distance)
	assert.Equal(t, "k2", hits[1].ChunkID)
	assert.InDelta(t, 1.0, hits[1].Distance, 1e-9)

	hits, err = r.Search(ctx, "revenue", "c1", 0)
	require.NoError(t, err)
	require.Len(t, hits, 4)
	assert.Equal(t, "minutes.txt", hits[2].DocumentName)
	assert.Equal(t, UnknownDocument, hits[3].DocumentName)
	for _, h := range hits {
		assert.NotEqual(t, "d9", h.DocumentID)
	}
}

func TestRetriever_EmbedFailure(t *testing.T) {
	r := NewRetriever(keywordEmbedder{err: domain.ErrServiceUnavailable}, seededStore(t), fakeLookup{}, 5)

	_, err := r.Search(context.Background(), "revenue", "c1", 5)

	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{answer: "Revenue grew 12% (report.pdf)."}
	svc := newService(t, gen, 4)

	answer, err := svc.Query(ctx, "How did revenue change?", "c1")

	require.NoError(t, err)
	assert.Equal(t, "Revenue grew 12% (report.pdf).", answer.Answer)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, "How did revenue change?", gen.user)
	assert.Contains(t, gen.system, "[1] (report.pdf)\nRevenue grew by twelve percent.")
	assert.Contains(t, gen.system, "[3] (minutes.txt)")
	assert.Contains(t, gen.system, "[4] (Unknown document)")
	assert.NotContains(t, gen.system, "other.txt")

	// k1 and k2 share d1, so it is cited once.
	assert.Equal(t, []domain.Source{
		{DocumentName: "report.pdf", Excerpt: "Revenue grew by twelve percent."},
		{DocumentName: "minutes.txt", Excerpt: "The dividend is forty cents."},
		{DocumentName: UnknownDocument, Excerpt: "Orphaned revenue notes."},
	}, answer.Sources)
}

func TestService_QueryWithoutHits(t *testing.T) {
	gen := &fakeGenerator{answer: "unused"}
	retriever := NewRetriever(keywordEmbedder{}, vectorstore.NewMemory(), fakeLookup{}, 5)
	svc := NewService(retriever, gen, logger.Nop())

	answer, err := svc.Query(context.Background(), "anything", "c1")

	require.NoError(t, err)
	assert.Equal(t, NoResultsAnswer, answer.Answer)
	assert.NotNil(t, answer.Sources)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, gen.calls)
}

func TestService_QueryGenerationErrors(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
		is   error
	}{
		{name: "empty answer", gen: &fakeGenerator{answer: "  \n"}},
		{name: "backend failure", gen: &fakeGenerator{err: errors.New("boom")}},
		{name: "unreachable backend", gen: &fakeGenerator{err: domain.ErrServiceUnavailable}, is: domain.ErrServiceUnavailable},
		{name: "already classified", gen: &fakeGenerator{err: domain.ErrGeneration}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, tt.gen, 5)

			_, err := svc.Query(context.Background(), "revenue", "c1")

			assert.ErrorIs(t, err, domain.ErrGeneration)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			assert.Equal(t, 1, tt.gen.calls)
		})
	}
}
