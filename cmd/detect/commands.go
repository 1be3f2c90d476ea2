package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formbricks/plagiarism-detector/internal/service"
)

func newAnalyzeCmd(c *cli) *cobra.Command {
	var in inputFlags

	cmd := &cobra.Command{
		Use:   "analyze [text...]",
		Short: "Report all pairs at or above the threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := in.resolve(cmd, args)
			if err != nil {
				return err
			}

			res, err := c.service.Analyze(cmd.Context(), service.AnalyzeRequest{
				Texts:     doc.Texts,
				Model:     doc.Model,
				Threshold: doc.Threshold,
			})
			if err != nil {
				return err
			}

			return writeResult(cmd.OutOrStdout(), c.format, res)
		},
	}

	in.register(cmd, true)

	return cmd
}

func newDetailedCmd(c *cli) *cobra.Command {
	var in inputFlags

	cmd := &cobra.Command{
		Use:   "detailed [text...]",
		Short: "Split flagged pairs into high and moderate confidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := in.resolve(cmd, args)
			if err != nil {
				return err
			}

			res, err := c.service.AnalyzeDetailed(cmd.Context(), service.AnalyzeRequest{
				Texts:     doc.Texts,
				Model:     doc.Model,
				Threshold: doc.Threshold,
			})
			if err != nil {
				return err
			}

			return writeResult(cmd.OutOrStdout(), c.format, res)
		},
	}

	in.register(cmd, true)

	return cmd
}

func newThresholdsCmd(c *cli) *cobra.Command {
	var (
		in         inputFlags
		thresholds []float64
	)

	cmd := &cobra.Command{
		Use:   "thresholds [text...]",
		Short: "Run detection at several thresholds over one similarity matrix",
		Example: `  detect thresholds --levels 0.6,0.75,0.9 "first text" "second text"
  detect thresholds --input essays.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := in.resolve(cmd, args)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("levels") {
				doc.Thresholds = thresholds
			}

			res, err := c.service.DetectMultiThreshold(cmd.Context(), doc.Texts, doc.Model, doc.Thresholds)
			if err != nil {
				return err
			}

			return writeResult(cmd.OutOrStdout(), c.format, res)
		},
	}

	in.register(cmd, false)
	cmd.Flags().Float64SliceVar(&thresholds, "levels", nil, "Comma-separated thresholds in [0, 1]")

	return cmd
}

func newCompareCmd(c *cli) *cobra.Command {
	var in inputFlags

	cmd := &cobra.Command{
		Use:   "compare <text1> <text2>",
		Short: "Score the similarity of exactly two texts",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := in.resolve(cmd, args)
			if err != nil {
				return err
			}

			if len(doc.Texts) != 2 {
				return fmt.Errorf("compare needs exactly 2 texts, got %d", len(doc.Texts))
			}

			res, err := c.service.Compare(cmd.Context(), doc.Texts[0], doc.Texts[1], doc.Model)
			if err != nil {
				return err
			}

			return writeResult(cmd.OutOrStdout(), c.format, res)
		},
	}

	in.register(cmd, false)

	return cmd
}

func newModelsCmd(c *cli) *cobra.Command {
	var warm bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List configured models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if warm {
				if err := c.registry.Warmup(cmd.Context(), c.cfg.DefaultModel); err != nil {
					return err
				}
			}

			return writeResult(cmd.OutOrStdout(), c.format, c.service.ListModels())
		},
	}

	cmd.Flags().BoolVar(&warm, "warm", false, "Load the default model before listing")

	return cmd
}
