package trackgraph

import (
	"errors"
	"fmt"

	"github.com/hupe1980/trackgraph/dataset"
	"github.com/hupe1980/trackgraph/kmeans"
)

// InputError indicates the track collection could not be read or decoded,
// or contained no usable records.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type InputError struct {
	Path  string
	cause error
}

func (e *InputError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("input error (%s): %v", e.Path, e.cause)
	}
	return fmt.Sprintf("input error: %v", e.cause)
}

func (e *InputError) Unwrap() error { return e.cause }

// ConfigError indicates parameters the pipeline cannot run with, either on
// their own or against the loaded data (e.g. more clusters than tracks).
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ConfigError struct {
	Reason string
	cause  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.cause }

// ComputationError indicates a pipeline stage failed mid-run.
//
// The original underlying error can be accessed via errors.Unwrap.
type ComputationError struct {
	Stage string
	cause error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.cause)
}

func (e *ComputationError) Unwrap() error { return e.cause }

// OutputError indicates the artifact set could not be published. The
// previously committed run, if any, is untouched.
//
// The original underlying error can be accessed via errors.Unwrap.
type OutputError struct {
	cause error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output error: %v", e.cause)
}

func (e *OutputError) Unwrap() error { return e.cause }

// translateStageError maps stage failures onto the public taxonomy.
// Parameter-vs-data mismatches surface as config errors even when a stage
// detects them, so callers can distinguish bad settings from broken math.
func translateStageError(stage string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, kmeans.ErrInvalidK) || errors.Is(err, kmeans.ErrTooFewPoints) || errors.Is(err, kmeans.ErrInvalidRange) {
		return &ConfigError{Reason: err.Error(), cause: err}
	}
	if errors.Is(err, dataset.ErrEmpty) {
		return &InputError{cause: err}
	}

	return &ComputationError{Stage: stage, cause: err}
}
