// Package datatypes defines small shared enums (analysis pipeline stages).
package datatypes

import (
	"errors"
	"fmt"
)

// ErrInvalidStage is returned when a string does not name a pipeline stage.
var ErrInvalidStage = errors.New("invalid stage")

// Stage is a step of an analysis: embedding, matrix construction, pair detection.
// Use String() for logs, metric attributes and API error bodies.
type Stage uint8

// Stage constants in pipeline order; string form is given in stageNames.
const (
	StageEmbed Stage = iota
	StageSimilarity
	StageDetect
)

// stageNames is the single source of truth for valid stage strings, indexed by Stage.
var stageNames = [...]string{
	StageEmbed:      "embed",
	StageSimilarity: "similarity",
	StageDetect:     "detect",
}

// String returns the string representation of a Stage.
// Returns empty string for invalid stages.
func (s Stage) String() string {
	if int(s) >= len(stageNames) {
		return ""
	}

	return stageNames[s]
}

// MarshalText implements encoding.TextMarshaler so stages serialize by name.
func (s Stage) MarshalText() ([]byte, error) {
	name := s.String()
	if name == "" {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStage, s)
	}

	return []byte(name), nil
}

// ParseStage converts a string to a Stage.
func ParseStage(s string) (Stage, error) {
	for i, name := range stageNames {
		if name == s {
			return Stage(i), nil //nolint:gosec // i is bounded by len(stageNames)
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidStage, s)
}

// IsValidStage checks if a stage string is valid.
func IsValidStage(s string) bool {
	_, err := ParseStage(s)

	return err == nil
}

// GetAllStages returns all stage strings in pipeline order.
func GetAllStages() []string {
	out := make([]string, len(stageNames))
	copy(out, stageNames[:])

	return out
}
