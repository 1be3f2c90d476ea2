package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOllamaServer(t *testing.T, models []string, dims int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, _ *http.Request) {
		resp := ollamaTagsResponse{}
		for _, m := range models {
			resp.Models = append(resp.Models, ollamaModel{Name: m})
		}

		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("POST /api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		if req.Model == "broken" {
			http.Error(w, "model crashed", http.StatusInternalServerError)

			return
		}

		resp := ollamaEmbedResponse{}
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[i%dims] = 1
			resp.Embeddings = append(resp.Embeddings, vec)
		}

		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestNewOllamaBackend_Options(t *testing.T) {
	b := NewOllamaBackend("all-minilm", 384,
		WithBaseURL("http://custom:8080/"),
		WithTimeout(5*time.Second),
	)

	assert.Equal(t, "http://custom:8080", b.baseURL)
	assert.Equal(t, "all-minilm", b.ModelName())
	assert.Equal(t, 384, b.Dimensions())
	assert.Equal(t, 5*time.Second, b.client.Timeout)
}

func TestOllamaBackend_Encode(t *testing.T) {
	srv := newOllamaServer(t, []string{"all-minilm:latest"}, 4)
	b := NewOllamaBackend("all-minilm", 4, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	vectors, err := b.Encode(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, Vector{0, 1, 0, 0}, vectors[1])
}

func TestOllamaBackend_EncodeDimensionMismatch(t *testing.T) {
	srv := newOllamaServer(t, nil, 4)
	b := NewOllamaBackend("all-minilm", 8, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	_, err := b.Encode(context.Background(), []string{"one"})
	require.ErrorIs(t, err, ErrDimensions)
}

func TestOllamaBackend_EncodeServerError(t *testing.T) {
	srv := newOllamaServer(t, nil, 4)
	b := NewOllamaBackend("broken", 4, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	_, err := b.Encode(context.Background(), []string{"one"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "model crashed")
}

func TestOllamaBackend_HasModel(t *testing.T) {
	srv := newOllamaServer(t, []string{"all-minilm:latest", "jina/jina-embeddings-v2-small-en:latest"}, 4)

	tests := []struct {
		model string
		want  bool
	}{
		{"all-minilm", true},
		{"all-minilm:latest", true},
		{"jina/jina-embeddings-v2-small-en", true},
		{"all-mpnet-base-v2", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			b := NewOllamaBackend(tt.model, 4, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

			ok, err := b.HasModel(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestOllamaLoader(t *testing.T) {
	srv := newOllamaServer(t, []string{"all-minilm:latest"}, 4)

	t.Run("ready", func(t *testing.T) {
		b, err := OllamaLoader("all-minilm", 4, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 4, b.Dimensions())
	})

	t.Run("model not pulled", func(t *testing.T) {
		_, err := OllamaLoader("all-mpnet-base-v2", 4, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ollama pull all-mpnet-base-v2")
	})

	t.Run("wrong dimensions", func(t *testing.T) {
		_, err := OllamaLoader("all-minilm", 384, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))(context.Background())
		require.ErrorIs(t, err, ErrDimensions)
	})

	t.Run("not running", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		url := dead.URL
		dead.Close()

		_, err := OllamaLoader("all-minilm", 4, WithBaseURL(url))(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ollama is not running")
	})
}

func TestFormatErrorBody(t *testing.T) {
	assert.Equal(t, "boom", formatErrorBody(strings.NewReader("boom")))
	assert.Len(t, formatErrorBody(strings.NewReader(strings.Repeat("x", 10000))), 4096)
}
