package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/plagiarism-detector/internal/config"
)

const testAPIKey = "test-api-key-12345"

// newTestServer starts the full handler chain over the offline hash model.
func newTestServer(t *testing.T, metricsExporter string) *httptest.Server {
	t.Helper()

	t.Setenv("HASH_MODEL_ENABLED", "true")
	t.Setenv("SUPPORTED_MODELS", "hash")
	t.Setenv("DEFAULT_MODEL", "hash")
	t.Setenv("DEFAULT_THRESHOLD", "0.8")
	t.Setenv("API_KEY", testAPIKey)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("OTEL_METRICS_EXPORTER", metricsExporter)
	t.Setenv("OTEL_TRACES_EXPORTER", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	app, err := NewApp(cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(app.server.Handler)
	t.Cleanup(func() {
		srv.Close()
		require.NoError(t, app.Shutdown(context.Background()))
	})

	return srv
}

func do(t *testing.T, method, url, body string, authorized bool) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	require.NoError(t, err)

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if authorized {
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func TestHealthAndInfoArePublic(t *testing.T) {
	srv := newTestServer(t, "")

	resp := do(t, http.MethodGet, srv.URL+"/health", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	health := decode(t, resp)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, true, health["models_loaded"])

	resp = do(t, http.MethodGet, srv.URL+"/", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/v1/models", decode(t, resp)["models"])

	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAnalyzeRequiresAPIKey(t *testing.T) {
	srv := newTestServer(t, "")

	resp := do(t, http.MethodPost, srv.URL+"/v1/analyze", `{"texts": ["a b", "c d"]}`, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAnalyzeEndToEnd(t *testing.T) {
	srv := newTestServer(t, "")

	body := `{"texts": ["the quick brown fox", "the quick brown fox", "an unrelated sentence"]}`
	resp := do(t, http.MethodPost, srv.URL+"/v1/analyze", body, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode(t, resp)
	assert.Equal(t, "hash", res["model_used"])
	assert.InDelta(t, 3, res["total_comparisons"], 0)

	pairs, ok := res["plagiarized_pairs"].([]any)
	require.True(t, ok)
	require.Len(t, pairs, 1)
}

func TestAnalyzeUnknownModelIsBadRequest(t *testing.T) {
	srv := newTestServer(t, "")

	body := `{"texts": ["a b", "c d"], "model_key": "not-a-real-model"}`
	resp := do(t, http.MethodPost, srv.URL+"/v1/analyze", body, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCompareAndModels(t *testing.T) {
	srv := newTestServer(t, "")

	resp := do(t, http.MethodPost, srv.URL+"/v1/compare?text1=hello+world&text2=hello+world", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 1.0, decode(t, resp)["similarity_score"], 1e-9)

	resp = do(t, http.MethodGet, srv.URL+"/v1/models", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	models := decode(t, resp)
	assert.Equal(t, "hash", models["default_model"])
	assert.Equal(t, []any{"hash"}, models["available_models"])
}

func TestMetricsEndpointExposesDetectorMetrics(t *testing.T) {
	srv := newTestServer(t, "prometheus")

	resp := do(t, http.MethodPost, srv.URL+"/v1/analyze", `{"texts": ["one two", "one two"]}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/metrics", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	body := string(raw)
	for _, stem := range []string{
		"detector_http_request",
		"detector_analysis",
		"detector_model_load",
		"detector_cache",
	} {
		assert.Contains(t, body, stem)
	}
}

func TestMetricsEndpointAbsentWithoutPrometheus(t *testing.T) {
	srv := newTestServer(t, "")

	resp := do(t, http.MethodGet, srv.URL+"/metrics", "", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
