package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrCancelled matches every cancellation returned by Process.
var ErrCancelled = errors.New("processing cancelled")

// ErrBusy is returned when the orchestrator is asked to change state or start
// a run while another run is active.
var ErrBusy = errors.New("a pipeline run is already in progress")

// CancelledError reports that the caller cancelled the run. Stage is the
// boundary at which the cancellation was observed; Cause is the context error.
type CancelledError struct {
	Stage string
	Cause error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("processing cancelled before %s", e.Stage)
}

func (e *CancelledError) Unwrap() error { return e.Cause }

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

// ConfigurationError explains why an enabled stage could not run with the
// given configuration. It is logged and recorded, never returned by Process.
type ConfigurationError struct {
	Stage  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}
