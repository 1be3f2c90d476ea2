package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// inputDoc is the --input document. JSON is accepted since it parses as YAML.
type inputDoc struct {
	Texts      []string  `yaml:"texts"`
	Model      string    `yaml:"model_key"`
	Threshold  *float64  `yaml:"threshold"`
	Thresholds []float64 `yaml:"thresholds"`
}

// inputFlags collects texts and options from --input, --file and positional arguments.
// Explicit flags take precedence over values in the input document.
type inputFlags struct {
	inputPath string
	files     []string
	model     string
	threshold float64
}

func (f *inputFlags) register(cmd *cobra.Command, withThreshold bool) {
	cmd.Flags().StringVarP(&f.inputPath, "input", "i", "", "YAML or JSON document with texts and options")
	cmd.Flags().StringArrayVarP(&f.files, "file", "f", nil, "Read one text from a file (repeatable)")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Model key (default: DEFAULT_MODEL)")

	if withThreshold {
		cmd.Flags().Float64VarP(&f.threshold, "threshold", "t", 0, "Similarity threshold in [0, 1] (default: DEFAULT_THRESHOLD)")
	}
}

// resolve merges the input document, file contents and positional texts in that order.
func (f *inputFlags) resolve(cmd *cobra.Command, args []string) (inputDoc, error) {
	var doc inputDoc

	if f.inputPath != "" {
		loaded, err := loadInputDoc(f.inputPath)
		if err != nil {
			return inputDoc{}, err
		}

		doc = loaded
	}

	for _, path := range f.files {
		data, err := os.ReadFile(path)
		if err != nil {
			return inputDoc{}, fmt.Errorf("read text file: %w", err)
		}

		doc.Texts = append(doc.Texts, string(data))
	}

	doc.Texts = append(doc.Texts, args...)

	if cmd.Flags().Changed("model") {
		doc.Model = f.model
	}

	if cmd.Flags().Changed("threshold") {
		t := f.threshold
		doc.Threshold = &t
	}

	return doc, nil
}

func loadInputDoc(path string) (inputDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return inputDoc{}, fmt.Errorf("read input document: %w", err)
	}

	var doc inputDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return inputDoc{}, fmt.Errorf("parse input document %s: %w", path, err)
	}

	if len(doc.Texts) == 0 {
		return inputDoc{}, errors.New("input document has no texts")
	}

	return doc, nil
}
