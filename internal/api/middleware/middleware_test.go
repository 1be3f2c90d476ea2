package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/plagiarism-detector/internal/observability"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func TestAuth(t *testing.T) {
	handler := Auth("secret")(okHandler)

	tests := []struct {
		name   string
		method string
		header string
		want   int
	}{
		{name: "valid key", method: http.MethodPost, header: "Bearer secret", want: http.StatusOK},
		{name: "case-insensitive scheme", method: http.MethodPost, header: "bearer secret", want: http.StatusOK},
		{name: "missing header", method: http.MethodPost, want: http.StatusUnauthorized},
		{name: "wrong scheme", method: http.MethodPost, header: "Basic secret", want: http.StatusUnauthorized},
		{name: "empty key", method: http.MethodPost, header: "Bearer ", want: http.StatusUnauthorized},
		{name: "wrong key", method: http.MethodPost, header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "preflight skips auth", method: http.MethodOptions, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "http://test/v1/analyze", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuth_EmptyKeyDisables(t *testing.T) {
	rec := httptest.NewRecorder()
	Auth("")(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "http://test/v1/analyze", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	t.Run("allowed origin is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/analyze", nil)
		req.Header.Set("Origin", "http://localhost:3000")

		rec := httptest.NewRecorder()
		CORS([]string{"http://localhost:3000"})(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("other origin gets no header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/analyze", nil)
		req.Header.Set("Origin", "http://evil.example")

		rec := httptest.NewRecorder()
		CORS([]string{"http://localhost:3000"})(okHandler).ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "http://test/v1/models", nil)
		req.Header.Set("Origin", "http://any.example")

		rec := httptest.NewRecorder()
		CORS([]string{"*"})(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight is answered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "http://test/v1/analyze", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)

		rec := httptest.NewRecorder()
		CORS(nil)(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
		assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	})
}

func TestRequestID(t *testing.T) {
	var seen string

	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = observability.RequestID(r.Context())
	}))

	t.Run("propagates client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "http://test/health", nil)
		req.Header.Set(requestIDHeader, "abc-123")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
	})

	t.Run("generates when missing or invalid", func(t *testing.T) {
		for _, id := range []string{"", "has space", strings.Repeat("x", maxRequestIDLength+1)} {
			req := httptest.NewRequest(http.MethodGet, "http://test/health", nil)
			if id != "" {
				req.Header.Set(requestIDHeader, id)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Len(t, seen, 36)
			assert.NotEqual(t, id, seen)
			assert.Equal(t, seen, rec.Header().Get(requestIDHeader))
		}
	})
}

type fakeAPIMetrics struct {
	mu       sync.Mutex
	routes   []string
	classes  []string
	tooLarge int
}

func (f *fakeAPIMetrics) RecordRequest(_ context.Context, _, route, statusClass string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.routes = append(f.routes, route)
	f.classes = append(f.classes, statusClass)
}

func (f *fakeAPIMetrics) RecordRequestBodyTooLarge(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tooLarge++
}

func TestMaxBody(t *testing.T) {
	readAll := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)

			return
		}

		w.WriteHeader(http.StatusOK)
	})

	t.Run("small body passes", func(t *testing.T) {
		metrics := &fakeAPIMetrics{}
		rec := httptest.NewRecorder()
		MaxBody(16, metrics)(readAll).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "http://test/v1/analyze", strings.NewReader("small")))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, metrics.tooLarge)
	})

	t.Run("large body is 413", func(t *testing.T) {
		metrics := &fakeAPIMetrics{}
		rec := httptest.NewRecorder()
		MaxBody(16, metrics)(readAll).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "http://test/v1/analyze", strings.NewReader(strings.Repeat("x", 64))))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, 1, metrics.tooLarge)
	})

	t.Run("disabled", func(t *testing.T) {
		rec := httptest.NewRecorder()
		MaxBody(0, nil)(readAll).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "http://test/v1/analyze", strings.NewReader(strings.Repeat("x", 64))))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMetrics(t *testing.T) {
	metrics := &fakeAPIMetrics{}
	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)

			return
		}

		w.WriteHeader(http.StatusOK)
	})
	handler := Metrics(metrics)(notFound)

	for _, path := range []string{"/v1/models", "/v1/unknown/123"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "http://test"+path, nil))
	}

	require.Len(t, metrics.routes, 2)
	assert.Equal(t, []string{"/v1/models", "other"}, metrics.routes)
	assert.Equal(t, []string{"2xx", "4xx"}, metrics.classes)
}

func TestStatusToClass(t *testing.T) {
	assert.Equal(t, "1xx", statusToClass(101))
	assert.Equal(t, "3xx", statusToClass(304))
	assert.Equal(t, "5xx", statusToClass(503))
	assert.Equal(t, "unknown", statusToClass(0))
}

func TestLogging_RecordsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	Logging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://test/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
