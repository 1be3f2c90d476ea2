package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/formbricks/plagiarism-detector/internal/api/response"
	"github.com/formbricks/plagiarism-detector/internal/api/validation"
	"github.com/formbricks/plagiarism-detector/internal/detecterrors"
	"github.com/formbricks/plagiarism-detector/internal/service"
)

// AnalysisService defines the analysis operations exposed over HTTP.
type AnalysisService interface {
	Analyze(ctx context.Context, req service.AnalyzeRequest) (*service.AnalysisResult, error)
	AnalyzeDetailed(ctx context.Context, req service.AnalyzeRequest) (*service.DetailedResult, error)
	DetectMultiThreshold(ctx context.Context, texts []string, model string, thresholds []float64) (*service.ThresholdAnalysis, error)
	Compare(ctx context.Context, text1, text2, model string) (*service.Comparison, error)
	ListModels() service.ModelList
}

// AnalysisHandler handles HTTP requests for plagiarism analysis.
type AnalysisHandler struct {
	service AnalysisService
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(service AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

// AnalyzeRequest is the body for POST /v1/analyze and POST /v1/analyze/detailed.
type AnalyzeRequest struct {
	Texts     []string `json:"texts"      validate:"required,dive,no_null_bytes"`
	ModelKey  string   `json:"model_key"  validate:"omitempty,no_null_bytes"`
	Threshold *float64 `json:"threshold"  validate:"omitempty,gte=0,lte=1"`
}

// ThresholdsRequest is the body for POST /v1/analyze/thresholds.
type ThresholdsRequest struct {
	Texts      []string  `json:"texts"      validate:"required,dive,no_null_bytes"`
	ModelKey   string    `json:"model_key"  validate:"omitempty,no_null_bytes"`
	Thresholds []float64 `json:"thresholds" validate:"required,min=1,dive,gte=0,lte=1"`
}

// CompareParams are the query parameters of POST /v1/compare.
type CompareParams struct {
	Text1    string `form:"text1"     validate:"required,no_null_bytes"`
	Text2    string `form:"text2"     validate:"required,no_null_bytes"`
	ModelKey string `form:"model_key" validate:"omitempty,no_null_bytes"`
}

// ModelDescription is one entry of ModelsResponse.ModelDescriptions.
type ModelDescription struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Dimensions  int    `json:"dimensions"`
	Backend     string `json:"backend"`
	Loaded      bool   `json:"loaded"`
	State       string `json:"state"`
}

// ModelsResponse is the response for GET /v1/models.
type ModelsResponse struct {
	AvailableModels   []string                    `json:"available_models"`
	DefaultModel      string                      `json:"default_model"`
	ModelDescriptions map[string]ModelDescription `json:"model_descriptions"`
}

// Analyze handles POST /v1/analyze.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.Analyze(r.Context(), service.AnalyzeRequest{
		Texts:     req.Texts,
		Model:     req.ModelKey,
		Threshold: req.Threshold,
	})
	if err != nil {
		RespondAnalysisError(w, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, res)
}

// AnalyzeDetailed handles POST /v1/analyze/detailed.
func (h *AnalysisHandler) AnalyzeDetailed(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.AnalyzeDetailed(r.Context(), service.AnalyzeRequest{
		Texts:     req.Texts,
		Model:     req.ModelKey,
		Threshold: req.Threshold,
	})
	if err != nil {
		RespondAnalysisError(w, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, res)
}

// Thresholds handles POST /v1/analyze/thresholds.
func (h *AnalysisHandler) Thresholds(w http.ResponseWriter, r *http.Request) {
	var req ThresholdsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.DetectMultiThreshold(r.Context(), req.Texts, req.ModelKey, req.Thresholds)
	if err != nil {
		RespondAnalysisError(w, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, res)
}

// Compare handles POST /v1/compare?text1=...&text2=...&model_key=...
func (h *AnalysisHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var params CompareParams
	if err := validation.ValidateAndDecodeQueryParams(r, &params); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	res, err := h.service.Compare(r.Context(), params.Text1, params.Text2, params.ModelKey)
	if err != nil {
		RespondAnalysisError(w, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, res)
}

// Models handles GET /v1/models.
func (h *AnalysisHandler) Models(w http.ResponseWriter, _ *http.Request) {
	list := h.service.ListModels()

	descriptions := make(map[string]ModelDescription, len(list.Models))
	for _, m := range list.Models {
		descriptions[m.Key] = ModelDescription{
			Name:        m.DisplayName,
			Description: m.Description,
			Dimensions:  m.Dimensions,
			Backend:     m.Backend,
			Loaded:      m.Loaded,
			State:       string(m.State),
		}
	}

	response.RespondJSON(w, http.StatusOK, ModelsResponse{
		AvailableModels:   list.AvailableModels,
		DefaultModel:      list.DefaultModel,
		ModelDescriptions: descriptions,
	})
}

// decodeJSON decodes and validates a JSON body into dst. On failure it writes the response and
// returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			response.RespondError(w, http.StatusRequestEntityTooLarge,
				"Request Entity Too Large", "request body exceeds maximum allowed size")

			return false
		}

		response.RespondBadRequest(w, "Invalid request body")

		return false
	}

	if err := validation.ValidateStruct(dst); err != nil {
		validation.RespondValidationError(w, err)

		return false
	}

	return true
}

// RespondAnalysisError maps analysis errors to problem responses: caller errors are 400, model
// load failures 503, backend inference failures 502, everything else 500.
func RespondAnalysisError(w http.ResponseWriter, err error) {
	switch {
	case detecterrors.IsCallerError(err):
		response.RespondBadRequest(w, "Invalid input: "+err.Error())
	case errors.Is(err, detecterrors.ErrModelLoad):
		response.RespondServiceUnavailable(w, err.Error())
	case errors.Is(err, detecterrors.ErrEmbedding):
		response.RespondBadGateway(w, err.Error())
	case errors.Is(err, context.Canceled):
		// The client is gone; the status is for the access log only.
		response.RespondError(w, statusClientClosedRequest, "Client Closed Request", "request canceled")
	default:
		response.RespondInternalServerError(w, "An unexpected error occurred during analysis")
	}
}

// statusClientClosedRequest is the non-standard status logged for requests the client abandoned.
const statusClientClosedRequest = 499
