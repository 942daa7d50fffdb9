// Package loadtest drives cyclic GET traffic against a caching reverse proxy.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lhttp "github.com/wesleyorama2/cacheload/internal/http"
	"github.com/wesleyorama2/cacheload/internal/loadtest/metrics"
)

// ErrStopped is returned by RunIteration when the stream was asked to stop.
var ErrStopped = errors.New("stream stopped")

// StreamState represents the lifecycle state of a Stream.
type StreamState int32

const (
	// StreamStateIdle indicates the stream is ready but not currently running.
	StreamStateIdle StreamState = iota
	// StreamStateRunning indicates the stream is inside an iteration.
	StreamStateRunning
	// StreamStateStopping indicates the stream has been requested to stop.
	StreamStateStopping
	// StreamStateStopped indicates the stream has fully stopped.
	StreamStateStopped
)

func (s StreamState) String() string {
	switch s {
	case StreamStateIdle:
		return "idle"
	case StreamStateRunning:
		return "running"
	case StreamStateStopping:
		return "stopping"
	case StreamStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stream is one sequential execution stream (a virtual user).
//
// Each stream owns its cursor and random source. Iterations on one stream
// never overlap.
type Stream struct {
	ID int

	scenario *Scenario
	rt       *Runtime
	cursor   *Cursor

	state atomic.Int32

	// Stop signal
	stopCh chan struct{}

	// Done signal (closed when the stream fully stops)
	doneCh chan struct{}

	iteration atomic.Int64
}

// NewStream creates a stream with a fresh cursor.
func NewStream(id int, scenario *Scenario, rt *Runtime) *Stream {
	return &Stream{
		ID:       id,
		scenario: scenario,
		rt:       rt,
		cursor:   NewCursor(scenario.Pool, scenario.Strategy, scenario.Seed, id),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// GetState returns the current stream state.
func (s *Stream) GetState() StreamState {
	return StreamState(s.state.Load())
}

// GetIteration returns the number of iterations started.
func (s *Stream) GetIteration() int64 {
	return s.iteration.Load()
}

// RunIteration executes one iteration: one identifier, every request in order.
//
// Returns:
//   - nil if the iteration completed, even with failed checks
//   - *AbortError if the abort signal is raised, by this stream or another
//   - ctx.Err() if the context was cancelled
//   - ErrStopped if the stream was asked to stop
func (s *Stream) RunIteration(ctx context.Context) error {
	currentState := s.GetState()
	if currentState == StreamStateStopping || currentState == StreamStateStopped {
		return ErrStopped
	}
	if err := s.interrupted(ctx); err != nil {
		return err
	}

	s.state.CompareAndSwap(int32(StreamStateIdle), int32(StreamStateRunning))
	defer s.state.CompareAndSwap(int32(StreamStateRunning), int32(StreamStateIdle))

	id := s.cursor.Next()
	iter := s.iteration.Add(1)

	for _, req := range s.scenario.Requests {
		if err := s.interrupted(ctx); err != nil {
			return err
		}

		if s.rt.Limiter != nil {
			if err := s.rt.Limiter.Wait(ctx); err != nil {
				return err
			}
			if err := s.interrupted(ctx); err != nil {
				return err
			}
		}

		resp := s.rt.Fetcher.Do(ctx, req.Build(id, s.scenario.HostHeader, s.scenario.Headers))

		if abortErr := s.handleResponse(iter, id, req, resp); abortErr != nil {
			return abortErr
		}

		if !s.Pause(ctx, s.scenario.RequestDelay) {
			return s.interrupted(ctx)
		}
	}

	s.rt.Metrics.RecordIteration()
	return nil
}

// handleResponse records, logs and checks one response. It returns a non-nil
// error when the run must stop.
func (s *Stream) handleResponse(iter int64, id int, req *Request, resp *lhttp.Response) *AbortError {
	cacheHeader := s.scenario.Checker.CacheHeader()
	ev := &ResponseEvent{
		StreamID:       s.ID,
		Iteration:      iter,
		Identifier:     id,
		Request:        req,
		Response:       resp,
		CacheHeader:    cacheHeader,
		CacheStatus:    resp.GetHeader(cacheHeader),
		HasCacheStatus: resp.HasHeader(cacheHeader),
	}

	record := metrics.ResponseRecord{
		Request:        req.Name,
		Duration:       resp.Duration(),
		StatusCode:     resp.StatusCode,
		Bytes:          resp.BodyLen(),
		Success:        !resp.Failed(),
		HasCacheHeader: ev.HasCacheStatus,
		CacheStatus:    ev.CacheStatus,
	}
	if resp.Err != nil {
		record.ErrorKind = string(resp.Err.Kind)
	}
	s.rt.Metrics.RecordResponse(record)
	s.rt.Observer.OnResponse(ev)

	if resp.Err != nil && s.scenario.Policy.AbortsOnTransport(resp.Err) {
		return s.rt.RaiseAbort(&AbortError{
			Reason:      ReasonCriticalTransport,
			RequestName: req.Name,
			Identifier:  id,
			Cause:       resp.Err,
		})
	}

	results := s.scenario.Checker.Evaluate(req, id, resp)
	for _, r := range results {
		s.rt.Metrics.RecordCheck(r.Name, r.Passed)
		if !r.Passed {
			s.rt.Observer.OnCheckFailed(ev, r)
		}
	}

	if !AllPassed(results) && s.scenario.Policy.AbortsOnCheckFailure() {
		return s.rt.RaiseAbort(&AbortError{
			Reason:      ReasonCheckFailed,
			RequestName: req.Name,
			Identifier:  id,
			Cause:       fmt.Errorf("failed checks: %s", FailedNames(results)),
		})
	}

	return nil
}

// interrupted returns the reason the stream must not start more work, or nil.
func (s *Stream) interrupted(ctx context.Context) error {
	if err := s.rt.Abort.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.stopCh:
		return ErrStopped
	default:
	}
	return nil
}

// Pause waits for d. It returns false if the wait was cut short by the
// context, the abort signal or a stop request.
func (s *Stream) Pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return s.interrupted(ctx) == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-s.rt.Abort.Done():
		return false
	case <-s.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// RequestStop signals the stream to stop before its next request.
func (s *Stream) RequestStop() {
	if s.state.CompareAndSwap(int32(StreamStateRunning), int32(StreamStateStopping)) ||
		s.state.CompareAndSwap(int32(StreamStateIdle), int32(StreamStateStopping)) {
		close(s.stopCh)
	}
}

// WaitForStop waits for the stream to stop with a timeout.
//
// Returns true if the stream stopped within the timeout, false otherwise.
func (s *Stream) WaitForStop(timeout time.Duration) bool {
	select {
	case <-s.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// MarkStopped marks the stream as fully stopped.
// Should be called by the scheduler when the stream goroutine exits.
func (s *Stream) MarkStopped() {
	prev := StreamState(s.state.Swap(int32(StreamStateStopped)))
	if prev != StreamStateStopping && prev != StreamStateStopped {
		close(s.stopCh)
	}
	select {
	case <-s.doneCh:
		// Already closed
	default:
		close(s.doneCh)
	}
}
