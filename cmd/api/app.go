package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/formbricks/plagiarism-detector/internal/api/handlers"
	"github.com/formbricks/plagiarism-detector/internal/api/middleware"
	"github.com/formbricks/plagiarism-detector/internal/catalog"
	"github.com/formbricks/plagiarism-detector/internal/config"
	"github.com/formbricks/plagiarism-detector/internal/detection"
	"github.com/formbricks/plagiarism-detector/internal/observability"
	"github.com/formbricks/plagiarism-detector/internal/registry"
	"github.com/formbricks/plagiarism-detector/internal/service"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	server         *http.Server
	registry       *registry.Registry
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// setupMetrics creates the meter provider and detector metrics when metrics are enabled.
// The handler is non-nil only for the Prometheus exporter.
func setupMetrics(cfg *config.Config) (*sdkmetric.MeterProvider, http.Handler, *observability.Metrics, error) {
	mp, handler, err := observability.NewMeterProvider(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create meter provider: %w", err)
	}

	if mp == nil {
		return nil, nil, nil, nil
	}

	metrics, err := observability.NewMetrics(mp.Meter(observability.MeterScope))
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(context.Background(), mp); err2 != nil {
			slog.Error("shutdown meter provider after metrics error", "error", err2)
		}

		return nil, nil, nil, fmt.Errorf("create metrics: %w", err)
	}

	return mp, handler, metrics, nil
}

// NewApp builds and wires all components. It does not start the HTTP server; call Run to start
// and block until shutdown or failure.
func NewApp(cfg *config.Config) (app *App, err error) {
	var (
		meterProvider  *sdkmetric.MeterProvider
		metricsHandler http.Handler
		metrics        *observability.Metrics
		tracerProvider *sdktrace.TracerProvider
	)

	if cfg.MetricsExporter == "" {
		slog.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		meterProvider, metricsHandler, metrics, err = setupMetrics(cfg)
		if err != nil {
			return nil, err
		}
	}

	if cfg.TracesExporter == "" {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		tracerProvider, err = observability.NewTracerProvider(cfg)
		if err != nil {
			if err2 := shutdownObservability(context.Background(), nil, meterProvider); err2 != nil {
				slog.Error("shutdown meter provider after tracer provider error", "error", err2)
			}

			return nil, fmt.Errorf("create tracer provider: %w", err)
		}
	}

	defer func() {
		if err == nil {
			return
		}

		if err2 := shutdownObservability(context.Background(), tracerProvider, meterProvider); err2 != nil {
			slog.Error("shutdown observability after startup error", "error", err2)
		}
	}()

	// Installed unconditionally so request_id (and trace_id/span_id when tracing is on) appear in logs.
	slog.SetDefault(slog.New(observability.NewContextHandler(slog.Default().Handler())))

	if tracerProvider != nil {
		otel.SetTracerProvider(tracerProvider)
	}

	if meterProvider != nil {
		otel.SetMeterProvider(meterProvider)
	}

	var (
		analysisMetrics observability.AnalysisMetrics
		modelMetrics    observability.ModelMetrics
		cacheMetrics    observability.CacheMetrics
		apiMetrics      observability.APIMetrics
	)
	if metrics != nil {
		analysisMetrics = metrics.Analysis
		modelMetrics = metrics.Models
		cacheMetrics = metrics.Cache
		apiMetrics = metrics.API
	}

	models, err := catalog.Models(cfg)
	if err != nil {
		return nil, fmt.Errorf("build model catalog: %w", err)
	}

	reg, err := registry.New(registry.Params{
		Models:      models,
		LoadTimeout: cfg.ModelLoadTimeout,
		Metrics:     modelMetrics,
		Logger:      slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("create model registry: %w", err)
	}

	embedder, err := service.NewEmbeddingProvider(service.EmbeddingProviderParams{
		Registry:     reg,
		CacheSize:    cfg.EmbeddingCacheSize,
		CacheMetrics: cacheMetrics,
		Logger:       slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}

	analysisService := service.NewAnalysisService(service.AnalysisServiceParams{
		Registry:         reg,
		Embedder:         embedder,
		Detector:         detection.New(cfg.PreviewLength),
		DefaultModel:     cfg.DefaultModel,
		DefaultThreshold: cfg.DefaultThreshold,
		StrictThreshold:  cfg.StrictThreshold,
		MaxTexts:         cfg.MaxTexts,
		Metrics:          analysisMetrics,
		Logger:           slog.Default(),
	})

	server := newHTTPServer(cfg, serverDeps{
		health:         handlers.NewHealthHandler(reg, cfg.DefaultModel),
		analysis:       handlers.NewAnalysisHandler(analysisService),
		metricsHandler: metricsHandler,
		apiMetrics:     apiMetrics,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
	})

	slog.Info("model catalog ready",
		"models", reg.Keys(),
		"default_model", cfg.DefaultModel,
		"default_threshold", cfg.DefaultThreshold,
		"strict_threshold", cfg.StrictThreshold,
		"max_texts", cfg.MaxTexts,
	)

	return &App{
		cfg:            cfg,
		server:         server,
		registry:       reg,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
	}, nil
}

type serverDeps struct {
	health         *handlers.HealthHandler
	analysis       *handlers.AnalysisHandler
	metricsHandler http.Handler
	apiMetrics     observability.APIMetrics
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// newHTTPServer builds the HTTP server and muxes (no auth on /, /health and /metrics, API key on /v1/).
// Handler chain: RequestID -> Metrics -> CORS -> otelhttp(Logging(MaxBody(mux))) so access logs get
// trace_id/span_id from context.
func newHTTPServer(cfg *config.Config, deps serverDeps) *http.Server {
	public := http.NewServeMux()
	public.HandleFunc("GET /{$}", deps.health.Info)
	public.HandleFunc("GET /health", deps.health.Check)

	// /metrics exists only with the Prometheus exporter; OTLP pushes instead.
	if deps.metricsHandler != nil {
		public.Handle("GET /metrics", deps.metricsHandler)
	}

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/analyze", deps.analysis.Analyze)
	protected.HandleFunc("POST /v1/analyze/detailed", deps.analysis.AnalyzeDetailed)
	protected.HandleFunc("POST /v1/analyze/thresholds", deps.analysis.Thresholds)
	protected.HandleFunc("POST /v1/compare", deps.analysis.Compare)
	protected.HandleFunc("GET /v1/models", deps.analysis.Models)

	mux := http.NewServeMux()
	mux.Handle("/v1/", middleware.Auth(cfg.APIKey)(protected))
	mux.Handle("/", public)

	otelOpts := []otelhttp.Option{
		// Skip tracing and HTTP metrics for health checks and scrapes to reduce noise.
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if deps.meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(deps.meterProvider))
	}

	if deps.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(deps.tracerProvider))
	}

	// Logging runs inside otelhttp so r.Context() has the span when we log (trace_id/span_id in access logs).
	var recorder middleware.RequestBodyTooLargeRecorder
	if deps.apiMetrics != nil {
		recorder = deps.apiMetrics
	}

	inner := middleware.Logging(middleware.MaxBody(cfg.MaxRequestBodyBytes, recorder)(mux))
	handler := otelhttp.NewHandler(inner, "detector-api", otelOpts...)
	handler = middleware.CORS(cfg.CORSAllowedOrigins)(handler)
	handler = middleware.Metrics(deps.apiMetrics)(handler)
	handler = middleware.RequestID(handler)

	const (
		readTimeout = 15 * time.Second
		idleTimeout = 60 * time.Second
		// An analysis may include a cold model load before encoding.
		minWriteTimeout = 60 * time.Second
		encodeAllowance = 30 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: max(minWriteTimeout, cfg.ModelLoadTimeout+encodeAllowance),
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server, then blocks until ctx is cancelled (e.g. signal) or the server fails.
// With PRELOAD_DEFAULT_MODEL the default model is loaded in the background. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	if a.cfg.PreloadDefaultModel {
		go a.preload(ctx)
	}

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr <- fmt.Errorf("server: %w", err)
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (a *App) preload(ctx context.Context) {
	start := time.Now()

	if err := a.registry.Warmup(ctx, a.cfg.DefaultModel); err != nil {
		slog.ErrorContext(ctx, "preload default model failed", "model", a.cfg.DefaultModel, "error", err)

		return
	}

	slog.InfoContext(ctx, "default model preloaded", "model", a.cfg.DefaultModel, "duration", time.Since(start))
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *sdkmetric.MeterProvider) error {
	var first error

	if tracer != nil {
		if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
			first = err
		}
	}

	if meter != nil {
		if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
			if first == nil {
				first = err
			} else {
				slog.Error("shutdown meter provider", "error", err)
			}
		}
	}

	return first
}

// Shutdown stops the server and releases loaded models. Call after Run returns.
// Observability is shut down once via defer; its error is returned only when the server shut down successfully.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	defer func() {
		a.registry.Clear()
		slog.Info("models unloaded")
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
