package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/formbricks/plagiarism-detector/internal/api/response"
)

// Version is reported by the health and root endpoints.
const Version = "1.0.0"

// ModelWarmer loads a model on demand and reports how many are ready.
type ModelWarmer interface {
	Warmup(ctx context.Context, key string) error
	LoadedCount() int
}

// HealthHandler handles health check and service info requests.
type HealthHandler struct {
	models       ModelWarmer
	defaultModel string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(models ModelWarmer, defaultModel string) *HealthHandler {
	return &HealthHandler{models: models, defaultModel: defaultModel}
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	ModelsLoaded bool   `json:"models_loaded"`
	LoadedCount  int    `json:"loaded_count"`
}

// InfoResponse is the response for GET /.
type InfoResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Health  string `json:"health"`
	Models  string `json:"models"`
}

// Check handles GET /health. It loads the default model if needed; a failed load is reported in
// models_loaded, not as an unhealthy status.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	loaded := true

	if err := h.models.Warmup(r.Context(), h.defaultModel); err != nil {
		slog.WarnContext(r.Context(), "health check could not load default model",
			"model", h.defaultModel, "error", err)

		loaded = false
	}

	response.RespondJSON(w, http.StatusOK, HealthResponse{
		Status:       "healthy",
		Version:      Version,
		ModelsLoaded: loaded,
		LoadedCount:  h.models.LoadedCount(),
	})
}

// Info handles GET /.
func (h *HealthHandler) Info(w http.ResponseWriter, _ *http.Request) {
	response.RespondJSON(w, http.StatusOK, InfoResponse{
		Message: "Plagiarism Detector API",
		Version: Version,
		Health:  "/health",
		Models:  "/v1/models",
	})
}
