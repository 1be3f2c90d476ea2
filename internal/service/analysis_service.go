package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/formbricks/plagiarism-detector/internal/datatypes"
	"github.com/formbricks/plagiarism-detector/internal/detecterrors"
	"github.com/formbricks/plagiarism-detector/internal/detection"
	"github.com/formbricks/plagiarism-detector/internal/embeddings"
	"github.com/formbricks/plagiarism-detector/internal/observability"
	"github.com/formbricks/plagiarism-detector/internal/registry"
	"github.com/formbricks/plagiarism-detector/internal/similarity"
)

// Operation names used for logs, spans and metrics.
const (
	opAnalyze    = "analyze"
	opDetailed   = "detailed"
	opThresholds = "thresholds"
	opCompare    = "compare"
)

// minTexts is the smallest number of non-empty texts an analysis accepts.
const minTexts = 2

// Embedder produces vectors for texts with a given model key.
type Embedder interface {
	Embed(ctx context.Context, texts []string, modelKey string) ([]embeddings.Vector, error)
}

// AnalyzeRequest is the input of Analyze and AnalyzeDetailed. Empty Model and nil Threshold
// select the configured defaults.
type AnalyzeRequest struct {
	Texts     []string
	Model     string
	Threshold *float64
}

// AnalysisMetadata describes how an analysis was run.
type AnalysisMetadata struct {
	Model            string           `json:"model_used"`
	Threshold        float64          `json:"threshold_used"`
	TextCount        int              `json:"text_count"`
	TotalComparisons int              `json:"total_comparisons"`
	ElapsedSeconds   float64          `json:"execution_time"`
	Stats            similarity.Stats `json:"similarity_stats"`
}

// AnalysisResult is the outcome of Analyze.
type AnalysisResult struct {
	Matrix similarity.Matrix `json:"similarity_matrix"`
	Pairs  []detection.Pair  `json:"plagiarized_pairs"`
	AnalysisMetadata
}

// ThresholdPairs is the pair list detected at one threshold.
type ThresholdPairs struct {
	Threshold float64          `json:"threshold"`
	Count     int              `json:"count"`
	Pairs     []detection.Pair `json:"pairs"`
}

// ThresholdAnalysis is the outcome of DetectMultiThreshold: one entry per requested threshold,
// in request order, all computed from the same matrix.
type ThresholdAnalysis struct {
	Matrix           similarity.Matrix `json:"similarity_matrix"`
	Results          []ThresholdPairs  `json:"results"`
	Model            string            `json:"model_used"`
	TextCount        int               `json:"text_count"`
	TotalComparisons int               `json:"total_comparisons"`
	ElapsedSeconds   float64           `json:"execution_time"`
}

// DetailedResult splits pairs into high (strict threshold) and moderate confidence levels.
type DetailedResult struct {
	HighConfidence     []detection.Pair  `json:"high_confidence_plagiarism"`
	ModerateConfidence []detection.Pair  `json:"moderate_confidence_plagiarism"`
	StrictThreshold    float64           `json:"strict_threshold"`
	Matrix             similarity.Matrix `json:"similarity_matrix"`
	Metadata           AnalysisMetadata  `json:"metadata"`
}

// Comparison is the two-text report returned by Compare.
type Comparison struct {
	Similarity        float64 `json:"similarity_score"`
	HighlySimilar     bool    `json:"is_highly_similar"`
	ModeratelySimilar bool    `json:"is_moderately_similar"`
	Preview1          string  `json:"text1_preview"`
	Preview2          string  `json:"text2_preview"`
	Model             string  `json:"model_used"`
	ElapsedSeconds    float64 `json:"analysis_time"`
}

// ModelList is the outcome of ListModels.
type ModelList struct {
	AvailableModels []string                   `json:"available_models"`
	DefaultModel    string                     `json:"default_model"`
	Models          []registry.ModelDescriptor `json:"models"`
}

// AnalysisService runs the embed -> similarity -> detect pipeline.
type AnalysisService struct {
	registry         ModelRegistry
	embedder         Embedder
	detector         *detection.Detector
	defaultModel     string
	defaultThreshold float64
	strictThreshold  float64
	maxTexts         int
	metrics          observability.AnalysisMetrics
	tracer           trace.Tracer
	logger           *slog.Logger
}

// AnalysisServiceParams configures AnalysisService. Metrics, Tracer and Logger may be nil;
// a nil Detector uses the default preview length.
type AnalysisServiceParams struct {
	Registry         ModelRegistry
	Embedder         Embedder
	Detector         *detection.Detector
	DefaultModel     string
	DefaultThreshold float64
	StrictThreshold  float64
	MaxTexts         int
	Metrics          observability.AnalysisMetrics
	Tracer           trace.Tracer
	Logger           *slog.Logger
}

// NewAnalysisService creates an AnalysisService.
func NewAnalysisService(p AnalysisServiceParams) *AnalysisService {
	detector := p.Detector
	if detector == nil {
		detector = detection.New(0)
	}

	tracer := p.Tracer
	if tracer == nil {
		tracer = otel.Tracer(observability.TracerScope)
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AnalysisService{
		registry:         p.Registry,
		embedder:         p.Embedder,
		detector:         detector,
		defaultModel:     p.DefaultModel,
		defaultThreshold: p.DefaultThreshold,
		strictThreshold:  p.StrictThreshold,
		maxTexts:         p.MaxTexts,
		metrics:          p.Metrics,
		tracer:           tracer,
		logger:           logger,
	}
}

// DefaultModel returns the model key used when a request names none.
func (s *AnalysisService) DefaultModel() string {
	return s.defaultModel
}

// Analyze embeds the texts, builds the similarity matrix and reports pairs at or above the
// threshold.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	threshold := s.threshold(req.Threshold)

	run, err := s.run(ctx, opAnalyze, req.Texts, req.Model, []float64{threshold})
	if err != nil {
		return nil, err
	}

	return &AnalysisResult{
		Matrix:           run.matrix,
		Pairs:            run.levels[0],
		AnalysisMetadata: run.metadata(threshold),
	}, nil
}

// DetectMultiThreshold embeds once, builds one matrix and runs detection for each threshold.
func (s *AnalysisService) DetectMultiThreshold(
	ctx context.Context, texts []string, model string, thresholds []float64,
) (*ThresholdAnalysis, error) {
	if len(thresholds) == 0 {
		return nil, detecterrors.NewEmptyInputError("at least one threshold is required")
	}

	run, err := s.run(ctx, opThresholds, texts, model, thresholds)
	if err != nil {
		return nil, err
	}

	results := make([]ThresholdPairs, len(thresholds))
	for i, th := range thresholds {
		results[i] = ThresholdPairs{Threshold: th, Count: len(run.levels[i]), Pairs: run.levels[i]}
	}

	return &ThresholdAnalysis{
		Matrix:           run.matrix,
		Results:          results,
		Model:            run.model,
		TextCount:        len(texts),
		TotalComparisons: similarity.TotalComparisons(len(texts)),
		ElapsedSeconds:   run.elapsed.Seconds(),
	}, nil
}

// AnalyzeDetailed reports high-confidence pairs (strict threshold) and moderate pairs (request
// threshold) from a single matrix.
func (s *AnalysisService) AnalyzeDetailed(ctx context.Context, req AnalyzeRequest) (*DetailedResult, error) {
	moderate := s.threshold(req.Threshold)

	run, err := s.run(ctx, opDetailed, req.Texts, req.Model, []float64{s.strictThreshold, moderate})
	if err != nil {
		return nil, err
	}

	return &DetailedResult{
		HighConfidence:     run.levels[0],
		ModerateConfidence: run.levels[1],
		StrictThreshold:    s.strictThreshold,
		Matrix:             run.matrix,
		Metadata:           run.metadata(moderate),
	}, nil
}

// Compare scores two texts against each other.
func (s *AnalysisService) Compare(ctx context.Context, text1, text2, model string) (*Comparison, error) {
	run, err := s.run(ctx, opCompare, []string{text1, text2}, model, nil)
	if err != nil {
		return nil, err
	}

	score := run.matrix[0][1]
	budget := s.detector.PreviewLength()

	return &Comparison{
		Similarity:        score,
		HighlySimilar:     score >= s.strictThreshold,
		ModeratelySimilar: score >= s.defaultThreshold,
		Preview1:          detection.Preview(text1, budget),
		Preview2:          detection.Preview(text2, budget),
		Model:             run.model,
		ElapsedSeconds:    run.elapsed.Seconds(),
	}, nil
}

// ListModels returns the supported models in listing order with their load state.
func (s *AnalysisService) ListModels() ModelList {
	models := s.registry.ListAvailable()

	keys := make([]string, len(models))
	for i, m := range models {
		keys[i] = m.Key
	}

	return ModelList{AvailableModels: keys, DefaultModel: s.defaultModel, Models: models}
}

func (s *AnalysisService) threshold(t *float64) float64 {
	if t == nil {
		return s.defaultThreshold
	}

	return *t
}

type pipelineRun struct {
	model   string
	texts   int
	matrix  similarity.Matrix
	levels  [][]detection.Pair
	elapsed time.Duration
}

func (r *pipelineRun) metadata(threshold float64) AnalysisMetadata {
	return AnalysisMetadata{
		Model:            r.model,
		Threshold:        threshold,
		TextCount:        r.texts,
		TotalComparisons: similarity.TotalComparisons(r.texts),
		ElapsedSeconds:   r.elapsed.Seconds(),
		Stats:            similarity.Summarize(r.matrix),
	}
}

// run validates the request, then executes the stages strictly in order. Validation failures are
// returned as is; stage failures are wrapped in *StageError.
func (s *AnalysisService) run(
	ctx context.Context, op string, texts []string, model string, thresholds []float64,
) (res *pipelineRun, err error) {
	start := time.Now()

	if model == "" {
		model = s.defaultModel
	}

	ctx = observability.WithAnalysisOperation(ctx, op)

	ctx, span := s.tracer.Start(ctx, "analysis."+op, trace.WithAttributes(
		attribute.String(observability.AttrModel, model),
		attribute.Int("texts", len(texts)),
	))
	defer span.End()

	defer func() {
		elapsed := time.Since(start)
		s.finish(ctx, span, op, model, len(texts), res, err, elapsed)
	}()

	if err := s.validate(texts, model, thresholds); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "analysis started", "operation", op, "model", model, "texts", len(texts))

	var vectors []embeddings.Vector

	err = s.stage(ctx, datatypes.StageEmbed, func(ctx context.Context) error {
		var embedErr error
		vectors, embedErr = s.embedder.Embed(ctx, texts, model)

		return embedErr
	})
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, stageError(datatypes.StageEmbed,
			detecterrors.NewDimensionMismatchError("%d vectors for %d texts", len(vectors), len(texts)))
	}

	var matrix similarity.Matrix

	err = s.stage(ctx, datatypes.StageSimilarity, func(ctx context.Context) error {
		var buildErr error
		matrix, buildErr = similarity.Build(ctx, vectors)

		return buildErr
	})
	if err != nil {
		return nil, err
	}

	levels := make([][]detection.Pair, len(thresholds))

	err = s.stage(ctx, datatypes.StageDetect, func(ctx context.Context) error {
		for i, th := range thresholds {
			if err := ctx.Err(); err != nil {
				return err
			}

			pairs, detectErr := s.detector.Detect(matrix, texts, th)
			if detectErr != nil {
				return detectErr
			}

			levels[i] = pairs
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &pipelineRun{
		model:   model,
		texts:   len(texts),
		matrix:  matrix,
		levels:  levels,
		elapsed: time.Since(start),
	}, nil
}

// validate runs every caller-input check before any embedding work.
func (s *AnalysisService) validate(texts []string, model string, thresholds []float64) error {
	if s.maxTexts > 0 && len(texts) > s.maxTexts {
		return detecterrors.NewTooManyTextsError(len(texts), s.maxTexts)
	}

	nonEmpty, firstBlank := 0, -1

	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			if firstBlank < 0 {
				firstBlank = i
			}

			continue
		}

		nonEmpty++
	}

	if nonEmpty < minTexts {
		return detecterrors.NewInsufficientInputError(
			fmt.Sprintf("at least %d non-empty texts are required, got %d", minTexts, nonEmpty))
	}

	if firstBlank >= 0 {
		return detecterrors.NewInsufficientInputError(fmt.Sprintf("text at index %d is empty", firstBlank))
	}

	if _, err := s.registry.Describe(model); err != nil {
		return err
	}

	for _, th := range thresholds {
		if err := detection.ValidateThreshold(th); err != nil {
			return err
		}
	}

	return nil
}

func (s *AnalysisService) stage(ctx context.Context, stage datatypes.Stage, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "analysis.stage."+stage.String())
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	if s.metrics != nil {
		s.metrics.RecordStageDuration(ctx, stage.String(), time.Since(start))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return stageError(stage, err)
	}

	return nil
}

func (s *AnalysisService) finish(
	ctx context.Context, span trace.Span, op, model string, texts int, res *pipelineRun, err error, elapsed time.Duration,
) {
	outcome := analysisOutcome(err)

	if s.metrics != nil {
		s.metrics.RecordAnalysis(ctx, op, model, outcome, elapsed)
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		if detecterrors.IsCallerError(err) {
			s.logger.DebugContext(ctx, "analysis rejected", "operation", op, "model", model, "error", err)
		} else {
			s.logger.ErrorContext(ctx, "analysis failed",
				"operation", op, "model", model, "texts", texts, "outcome", outcome, "duration", elapsed, "error", err)
		}

		return
	}

	flagged := 0
	for _, level := range res.levels {
		flagged = max(flagged, len(level))
	}

	if s.metrics != nil {
		s.metrics.RecordPairsFlagged(ctx, model, flagged)
	}

	span.SetAttributes(attribute.Int("pairs", flagged))
	s.logger.InfoContext(ctx, "analysis completed",
		"operation", op, "model", model, "texts", texts, "pairs", flagged, "duration", elapsed)
}

func analysisOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case detecterrors.IsCallerError(err):
		return "invalid_input"
	case errors.Is(err, detecterrors.ErrModelLoad):
		return "model_load"
	case errors.Is(err, detecterrors.ErrEmbedding):
		return "embedding"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal_error"
	}
}
