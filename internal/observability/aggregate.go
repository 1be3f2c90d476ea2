package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all detector metric collectors. When metrics are disabled, all fields are nil.
// Components that accept an interface (AnalysisMetrics, ModelMetrics, CacheMetrics, APIMetrics) can
// receive the corresponding field; they already handle nil.
type Metrics struct {
	Analysis AnalysisMetrics
	Models   ModelMetrics
	Cache    CacheMetrics
	API      APIMetrics
}

// NewMetrics creates all collectors from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	analysis, err := NewAnalysisMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("analysis metrics: %w", err)
	}

	models, err := NewModelMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("model metrics: %w", err)
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	api, err := NewAPIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("api metrics: %w", err)
	}

	return &Metrics{
		Analysis: analysis,
		Models:   models,
		Cache:    cache,
		API:      api,
	}, nil
}
