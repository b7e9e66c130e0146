package ai

import (
	"errors"
	"fmt"
)

// ErrEmptyReply is returned when the model answers without any text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// GenerationError wraps every failure of a generation call: transport, auth, quota,
// invalid request, safety block, malformed or empty response.
type GenerationError struct {
	Model   string
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("generation failed: %s", e.Message)
	}
	return fmt.Sprintf("generation failed (model %s): %s", e.Model, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func newGenerationError(modelID string, err error) *GenerationError {
	return &GenerationError{Model: modelID, Message: err.Error(), Err: err}
}
