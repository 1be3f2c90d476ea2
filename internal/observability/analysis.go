package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AnalysisMetrics records orchestrator metrics: analyses by outcome, durations, flagged pairs.
type AnalysisMetrics interface {
	RecordAnalysis(ctx context.Context, operation, model, outcome string, duration time.Duration)
	RecordStageDuration(ctx context.Context, stage string, duration time.Duration)
	RecordPairsFlagged(ctx context.Context, model string, count int)
}

// analysisMetrics implements AnalysisMetrics.
type analysisMetrics struct {
	analyses      metric.Int64Counter
	duration      metric.Float64Histogram
	stageDuration metric.Float64Histogram
	pairsFlagged  metric.Int64Counter
}

// NewAnalysisMetrics creates AnalysisMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewAnalysisMetrics(meter metric.Meter) (AnalysisMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	analyses, err := meter.Int64Counter(
		MetricNameAnalyses,
		metric.WithDescription("Total analyses by operation, model and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create analyses counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameAnalysisDuration,
		metric.WithDescription("End-to-end analysis duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create analysis duration histogram: %w", err)
	}

	stageDuration, err := meter.Float64Histogram(
		MetricNameStageDuration,
		metric.WithDescription("Per-stage analysis duration (seconds): embed, similarity, detect"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stage duration histogram: %w", err)
	}

	pairsFlagged, err := meter.Int64Counter(
		MetricNamePairsFlagged,
		metric.WithDescription("Total text pairs reported at or above the requested threshold"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pairs flagged counter: %w", err)
	}

	return &analysisMetrics{
		analyses:      analyses,
		duration:      duration,
		stageDuration: stageDuration,
		pairsFlagged:  pairsFlagged,
	}, nil
}

func (a *analysisMetrics) RecordAnalysis(ctx context.Context, operation, model, outcome string, duration time.Duration) {
	operation = NormalizeReason(operation, AllowedOperations)
	a.analyses.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrOperation, operation),
		attribute.String(AttrModel, model),
		attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedAnalysisOutcomes)),
	))
	a.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrOperation, operation),
		attribute.String(AttrModel, model),
	))
}

func (a *analysisMetrics) RecordStageDuration(ctx context.Context, stage string, duration time.Duration) {
	a.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrStage, NormalizeStage(stage))))
}

func (a *analysisMetrics) RecordPairsFlagged(ctx context.Context, model string, count int) {
	if count > 0 {
		a.pairsFlagged.Add(ctx, int64(count), metric.WithAttributes(attribute.String(AttrModel, model)))
	}
}
