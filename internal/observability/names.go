// Package observability provides OpenTelemetry metrics and tracing for the detector API.
package observability

import (
	"github.com/formbricks/plagiarism-detector/internal/datatypes"
)

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameAnalyses            = "detector_analyses_total"
	MetricNameAnalysisDuration    = "detector_analysis_duration_seconds"
	MetricNameStageDuration       = "detector_stage_duration_seconds"
	MetricNamePairsFlagged        = "detector_pairs_flagged_total"
	MetricNameModelLoads          = "detector_model_loads_total"
	MetricNameModelLoadDuration   = "detector_model_load_duration_seconds"
	MetricNameModelsLoaded        = "detector_models_loaded"
	MetricNameCacheHits           = "detector_cache_hits_total"
	MetricNameCacheMisses         = "detector_cache_misses_total"
	MetricNameRequestBodyTooLarge = "detector_request_body_too_large_total"
	MetricNameHTTPRequests        = "detector_http_requests_total"
	MetricNameHTTPRequestDuration = "detector_http_request_duration_seconds"
)

// Attribute keys.
const (
	AttrModel     = "model"
	AttrOperation = "operation"
	AttrOutcome   = "outcome"
	AttrStage     = "stage"
	AttrCache     = "cache"

	AttrMethod      = "method"
	AttrRoute       = "route"
	AttrStatusClass = "status_class"
)

// Cache names used with CacheMetrics.
const (
	CacheEmbedding = "embedding"
	CacheModel     = "model"
)

// AllowedOperations for detector_analyses_total and detector_analysis_duration_seconds.
var AllowedOperations = map[string]bool{
	"analyze":    true,
	"detailed":   true,
	"thresholds": true,
	"compare":    true,
}

// AllowedAnalysisOutcomes for detector_analyses_total.
var AllowedAnalysisOutcomes = map[string]bool{
	"success":        true,
	"invalid_input":  true,
	"model_load":     true,
	"embedding":      true,
	"canceled":       true,
	"internal_error": true,
}

// AllowedLoadOutcomes for detector_model_loads_total.
var AllowedLoadOutcomes = map[string]bool{
	"success": true,
	"failed":  true,
	"timeout": true,
}

// AllowedCacheNames for detector_cache_hits_total and detector_cache_misses_total.
var AllowedCacheNames = map[string]bool{
	CacheEmbedding: true,
	CacheModel:     true,
}

// NormalizeStage returns stage if it names a pipeline stage, otherwise "unknown".
func NormalizeStage(stage string) string {
	if datatypes.IsValidStage(stage) {
		return stage
	}

	return "unknown"
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}

// NormalizeCacheName returns name if it is a known cache, otherwise "other".
func NormalizeCacheName(name string) string {
	return NormalizeReason(name, AllowedCacheNames)
}
