package service

import (
	"github.com/formbricks/plagiarism-detector/internal/datatypes"
)

// StageError tags a pipeline failure with the stage that produced it.
// errors.Is and errors.As see through it to the underlying taxonomy error.
type StageError struct {
	Stage datatypes.Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return e.Stage.String() + " stage: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage datatypes.Stage, err error) error {
	if err == nil {
		return nil
	}

	return &StageError{Stage: stage, Err: err}
}
