package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag-lab/server/internal/domain"
	"github.com/rag-lab/server/internal/logger"
	"github.com/rag-lab/server/internal/ollama"
)

// fakeOllama serves /api/embed with vectors derived from input length and
// /api/tags with the given installed models.
func fakeOllama(t *testing.T, installed ...string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
			Input any    `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var inputs []string
		switch v := req.Input.(type) {
		case string:
			inputs = []string{v}
		case []any:
			for _, s := range v {
				inputs = append(inputs, s.(string))
			}
		}
		vectors := make([][]float32, len(inputs))
		for i, s := range inputs {
			vectors[i] = []float32{float32(len(s)), float32(i), 1}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": vectors})
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		models := make([]map[string]any, 0, len(installed))
		for _, name := range installed {
			models = append(models, map[string]any{"name": name})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"models": models})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newEmbedder(t *testing.T, url string) *TextEmbedder {
	t.Helper()
	return NewTextEmbedder(ollama.NewClient(url), "", logger.Nop())
}

func TestTextEmbedder_Embed(t *testing.T) {
	server := fakeOllama(t)
	emb := newEmbedder(t, server.URL)

	vec, err := emb.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0, 1}, vec)
	assert.Equal(t, DefaultModel, emb.Model())
}

func TestTextEmbedder_EmbedBatch(t *testing.T) {
	server := fakeOllama(t)
	emb := newEmbedder(t, server.URL)

	t.Run("preserves order in one request", func(t *testing.T) {
		vectors, err := emb.EmbedBatch(context.Background(), []string{"a", "bbb", "cc"})

		require.NoError(t, err)
		require.Len(t, vectors, 3)
		assert.Equal(t, []float32{1, 0, 1}, vectors[0])
		assert.Equal(t, []float32{3, 1, 1}, vectors[1])
		assert.Equal(t, []float32{2, 2, 1}, vectors[2])
	})

	t.Run("empty input", func(t *testing.T) {
		vectors, err := emb.EmbedBatch(context.Background(), nil)

		require.NoError(t, err)
		assert.Empty(t, vectors)
	})
}

func TestTextEmbedder_EmbedBatchCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	}))
	defer server.Close()

	_, err := newEmbedder(t, server.URL).EmbedBatch(context.Background(), []string{"a", "b"})

	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestTextEmbedder_Errors(t *testing.T) {
	t.Run("upstream status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"model \"nomic-embed-text\" not found"}`, http.StatusNotFound)
		}))
		defer server.Close()

		_, err := newEmbedder(t, server.URL).Embed(context.Background(), "x")

		var upstream *domain.UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Equal(t, http.StatusNotFound, upstream.StatusCode)
		assert.Contains(t, upstream.Body, "not found")
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		_, err := newEmbedder(t, url).EmbedBatch(context.Background(), []string{"x"})

		assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	})
}

func TestTextEmbedder_Health(t *testing.T) {
	t.Run("available with latest tag", func(t *testing.T) {
		server := fakeOllama(t, "nomic-embed-text:latest", "gpt-oss:20b-cloud")

		status := newEmbedder(t, server.URL).Health(context.Background(), "nomic-embed-text", "gpt-oss:20b-cloud")

		assert.True(t, status.Available)
		assert.Empty(t, status.Reason)
		assert.Equal(t, []string{"nomic-embed-text", "gpt-oss:20b-cloud"}, status.Models)
	})

	t.Run("missing models", func(t *testing.T) {
		server := fakeOllama(t, "llama3.2:3b")

		status := newEmbedder(t, server.URL).Health(context.Background())

		assert.False(t, status.Available)
		assert.Equal(t, []string{"nomic-embed-text"}, status.Missing)
		assert.Equal(t, "Missing models: nomic-embed-text. Run: ollama pull <model_name>", status.Reason)
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		status := newEmbedder(t, server.URL).Health(context.Background())

		assert.False(t, status.Available)
		assert.Equal(t, ReasonNotResponding, status.Reason)
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		status := newEmbedder(t, url).Health(context.Background())

		assert.False(t, status.Available)
		assert.Equal(t, ReasonUnreachable, status.Reason)
	})
}
