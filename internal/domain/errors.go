package domain

import (
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrRunNotFound is returned when no run exists for an id.
	ErrRunNotFound = eris.New("run not found")
	// ErrRunNotReady is returned when a run has no downloadable result yet.
	ErrRunNotReady = eris.New("run not ready")
)

// ValidationError lists the reasons a brief was rejected.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid run request: " + strings.Join(e.Violations, "; ")
}

// NotReadyError reports the status of a run whose result was requested too
// early. It matches ErrRunNotReady.
type NotReadyError struct {
	RunID  string
	Status RunStatus
}

func (e *NotReadyError) Error() string {
	return "run " + e.RunID + " is " + string(e.Status) + ", not succeeded"
}

// Is makes errors.Is(err, ErrRunNotReady) hold.
func (e *NotReadyError) Is(target error) bool {
	return target == ErrRunNotReady
}
