package observability

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ModelMetrics records model registry metrics (loads and resident models).
// Methods accept ctx for future exemplar support.
type ModelMetrics interface {
	RecordLoad(ctx context.Context, model, outcome string, duration time.Duration)
	SetLoadedModels(n int)
}

// modelMetrics implements ModelMetrics.
type modelMetrics struct {
	loads        metric.Int64Counter
	loadDuration metric.Float64Histogram
	loaded       atomic.Int64
	loadedGauge  metric.Int64ObservableGauge
}

// NewModelMetrics creates ModelMetrics and registers the resident-models gauge.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewModelMetrics(meter metric.Meter) (ModelMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	loads, err := meter.Int64Counter(
		MetricNameModelLoads,
		metric.WithDescription("Total model backend loads by model and outcome (success, failed, timeout)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create model loads counter: %w", err)
	}

	loadDuration, err := meter.Float64Histogram(
		MetricNameModelLoadDuration,
		metric.WithDescription("Model backend load duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create model load duration histogram: %w", err)
	}

	m := &modelMetrics{loads: loads, loadDuration: loadDuration}

	m.loadedGauge, err = meter.Int64ObservableGauge(
		MetricNameModelsLoaded,
		metric.WithDescription("Number of model backends currently loaded"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.loaded.Load())

			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create models loaded gauge: %w", err)
	}

	return m, nil
}

func (m *modelMetrics) RecordLoad(ctx context.Context, model, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrModel, model),
		attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedLoadOutcomes)),
	)
	m.loads.Add(ctx, 1, attrs)
	m.loadDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *modelMetrics) SetLoadedModels(n int) {
	m.loaded.Store(int64(n))
}
