package loadtest

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	lhttp "github.com/wesleyorama2/cacheload/internal/http"
)

// AbortReason names why a run was terminated early.
type AbortReason string

const (
	// ReasonHealthCheckFailed means the startup probe did not succeed.
	ReasonHealthCheckFailed AbortReason = "health-check-failed"

	// ReasonCriticalTransport means a response carried a critical transport error.
	ReasonCriticalTransport AbortReason = "critical-transport-error"

	// ReasonCheckFailed means a check failed under the strict policy.
	ReasonCheckFailed AbortReason = "check-failed"
)

// ErrAborted is matched by every *AbortError through errors.Is.
var ErrAborted = errors.New("run aborted")

// AbortError is the hard failure carried by a raised AbortSignal.
type AbortError struct {
	Reason      AbortReason `json:"reason"`
	RequestName string      `json:"request,omitempty"`
	Identifier  int         `json:"identifier,omitempty"`
	Cause       error       `json:"-"`
}

func (e *AbortError) Error() string {
	msg := fmt.Sprintf("run aborted: %s", e.Reason)
	if e.RequestName != "" {
		msg += fmt.Sprintf(" on %s id %d", e.RequestName, e.Identifier)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AbortError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrAborted) match any AbortError.
func (e *AbortError) Is(target error) bool {
	return target == ErrAborted
}

// AbortSignal is the run-wide, raise-once stop flag shared by all streams.
// The first Raise wins; later calls are ignored.
type AbortSignal struct {
	once   sync.Once
	err    atomic.Pointer[AbortError]
	doneCh chan struct{}
}

// NewAbortSignal creates a lowered signal.
func NewAbortSignal() *AbortSignal {
	return &AbortSignal{doneCh: make(chan struct{})}
}

// Raise sets the signal. It reports whether this call was the one that raised it.
func (s *AbortSignal) Raise(err *AbortError) bool {
	raised := false
	s.once.Do(func() {
		s.err.Store(err)
		close(s.doneCh)
		raised = true
	})
	return raised
}

// Raised reports whether the signal has been raised.
func (s *AbortSignal) Raised() bool {
	return s.err.Load() != nil
}

// Err returns the winning AbortError, or nil.
func (s *AbortSignal) Err() *AbortError {
	return s.err.Load()
}

// Done is closed when the signal is raised.
func (s *AbortSignal) Done() <-chan struct{} {
	return s.doneCh
}

// AbortPolicy decides which failures raise the signal.
type AbortPolicy string

const (
	// PolicyCritical aborts on critical transport errors only.
	PolicyCritical AbortPolicy = "critical"

	// PolicyStrict also aborts on the first failed check.
	PolicyStrict AbortPolicy = "strict"

	// PolicyLenient never aborts on per-request failures.
	PolicyLenient AbortPolicy = "lenient"
)

// AbortsOnTransport reports whether te should end the run.
func (p AbortPolicy) AbortsOnTransport(te *lhttp.TransportError) bool {
	return p != PolicyLenient && te.Critical()
}

// AbortsOnCheckFailure reports whether a failed check should end the run.
func (p AbortPolicy) AbortsOnCheckFailure() bool {
	return p == PolicyStrict
}
