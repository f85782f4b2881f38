package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag-lab/server/internal/domain"
)

func TestClient_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req["model"])
		assert.Len(t, req["input"], 2)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(EmbedResponse{
			Model:      "nomic-embed-text",
			Embeddings: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Embed(context.Background(), &EmbedRequest{
		Model: "nomic-embed-text",
		Input: []string{"a", "b"},
	})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, resp.Embeddings)
}

func TestClient_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		_ = json.NewEncoder(w).Encode(ChatResponse{
			Model:   req.Model,
			Message: &Message{Role: "assistant", Content: "hello"},
			Done:    true,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithAPIKey("secret"))
	resp, err := client.Chat(context.Background(), &ChatRequest{
		Model: "gpt-oss:20b-cloud",
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		},
		Stream: true,
	})

	require.NoError(t, err)
	require.NotNil(t, resp.Message)
	assert.Equal(t, "hello", resp.Message.Content)
}

func TestClient_Errors(t *testing.T) {
	t.Run("non-2xx status is an upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Embed(context.Background(), &EmbedRequest{Model: "x", Input: "y"})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUpstream)
		var upstream *domain.UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Equal(t, http.StatusNotFound, upstream.StatusCode)
		assert.Equal(t, "model not found", upstream.Body)
	})

	t.Run("unreachable server is unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := server.URL
		server.Close()

		_, err := NewClient(url).ListModels(context.Background())

		assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	})

	t.Run("malformed body is an upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).ListModels(context.Background())

		assert.ErrorIs(t, err, domain.ErrUpstream)
	})
}

func TestClient_ListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest","size":274302450},{"name":"llama3.2:3b"}]}`))
	}))
	defer server.Close()

	models, err := NewClient(server.URL + "/").ListModels(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"nomic-embed-text:latest", "llama3.2:3b"}, ModelNames(models))
}

func TestMissingModels(t *testing.T) {
	installed := []string{"nomic-embed-text:latest", "llama3.2:3b"}

	tests := []struct {
		name     string
		required []string
		want     []string
	}{
		{"latest tag matches bare name", []string{"nomic-embed-text"}, nil},
		{"exact name", []string{"llama3.2:3b"}, nil},
		{"other tag does not match", []string{"llama3.2"}, []string{"llama3.2"}},
		{"blank and repeated names", []string{"", "mxbai", "mxbai"}, []string{"mxbai"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MissingModels(installed, tt.required))
		})
	}
}
