package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/formbricks/plagiarism-detector/internal/catalog"
	"github.com/formbricks/plagiarism-detector/internal/config"
	"github.com/formbricks/plagiarism-detector/internal/detection"
	"github.com/formbricks/plagiarism-detector/internal/registry"
	"github.com/formbricks/plagiarism-detector/internal/service"
)

// cli holds state shared by subcommands for one invocation.
type cli struct {
	cfg      *config.Config
	registry *registry.Registry
	service  *service.AnalysisService

	format string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "detect",
		Short: "Detect plagiarism between texts using embedding similarity",
		Long: `Embed a set of texts with a configured model, compare every pair by cosine
similarity and report the pairs above a threshold.

Models and defaults are read from the same environment variables as the API server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}

			return c.setup(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if c.registry != nil {
				c.registry.Clear()
			}
		},
	}

	root.PersistentFlags().StringVar(&c.format, "format", formatJSON, "Output format: json or yaml")

	root.AddCommand(
		newAnalyzeCmd(c),
		newDetailedCmd(c),
		newThresholdsCmd(c),
		newCompareCmd(c),
		newModelsCmd(c),
	)

	return root
}

// setup loads configuration and wires the analysis pipeline. Logs go to stderr so stdout stays parseable.
func (c *cli) setup(logOut io.Writer) error {
	switch c.format {
	case formatJSON, formatYAML:
	default:
		return fmt.Errorf("unsupported format %q (use json or yaml)", c.format)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))

	models, err := catalog.Models(cfg)
	if err != nil {
		return fmt.Errorf("build model catalog: %w", err)
	}

	reg, err := registry.New(registry.Params{
		Models:      models,
		LoadTimeout: cfg.ModelLoadTimeout,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create model registry: %w", err)
	}

	embedder, err := service.NewEmbeddingProvider(service.EmbeddingProviderParams{
		Registry:  reg,
		CacheSize: cfg.EmbeddingCacheSize,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create embedding provider: %w", err)
	}

	c.cfg = cfg
	c.registry = reg
	c.service = service.NewAnalysisService(service.AnalysisServiceParams{
		Registry:         reg,
		Embedder:         embedder,
		Detector:         detection.New(cfg.PreviewLength),
		DefaultModel:     cfg.DefaultModel,
		DefaultThreshold: cfg.DefaultThreshold,
		StrictThreshold:  cfg.StrictThreshold,
		MaxTexts:         cfg.MaxTexts,
		Logger:           logger,
	})

	return nil
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		// Quiet by default on the command line.
		return slog.LevelWarn
	}
}
