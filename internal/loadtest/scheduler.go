package loadtest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler manages the lifecycle of streams.
//
// It provides:
//   - stream pool management (spawning and stopping streams)
//   - the shared runtime (fetcher, metrics, abort signal, observer, limiter)
//   - graceful shutdown coordination
//
// Executors use the scheduler to decide how many iterations each stream runs.
type Scheduler struct {
	scenario *Scenario
	rt       *Runtime

	streams   map[int]*Stream
	streamsMu sync.RWMutex

	nextID  atomic.Int32
	stopped atomic.Bool

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	shutdownWg   sync.WaitGroup
}

// NewScheduler creates a new stream scheduler.
func NewScheduler(scenario *Scenario, rt *Runtime) *Scheduler {
	if rt.Observer == nil {
		rt.Observer = NopObserver{}
	}
	if rt.Abort == nil {
		rt.Abort = NewAbortSignal()
	}
	return &Scheduler{
		scenario:   scenario,
		rt:         rt,
		streams:    make(map[int]*Stream),
		shutdownCh: make(chan struct{}),
	}
}

// Scenario returns the scenario every stream runs.
func (s *Scheduler) Scenario() *Scenario {
	return s.scenario
}

// Runtime returns the shared runtime.
func (s *Scheduler) Runtime() *Runtime {
	return s.rt
}

// Aborted reports whether the run's abort signal has been raised.
func (s *Scheduler) Aborted() bool {
	return s.rt.Abort.Raised()
}

// SpawnStream creates and registers a new stream. The caller runs it.
// After StopAll the stream is returned already asked to stop.
func (s *Scheduler) SpawnStream() *Stream {
	id := int(s.nextID.Add(1))
	st := NewStream(id, s.scenario, s.rt)

	s.streamsMu.Lock()
	s.streams[id] = st
	if s.stopped.Load() {
		st.RequestStop()
	}
	s.streamsMu.Unlock()

	return st
}

// ActiveStreamCount returns the count of non-stopped streams.
func (s *Scheduler) ActiveStreamCount() int {
	s.streamsMu.RLock()
	defer s.streamsMu.RUnlock()

	count := 0
	for _, st := range s.streams {
		if st.GetState() != StreamStateStopped {
			count++
		}
	}
	return count
}

// StopAll requests every stream to stop, including streams spawned later.
func (s *Scheduler) StopAll() {
	s.stopped.Store(true)

	s.streamsMu.RLock()
	defer s.streamsMu.RUnlock()

	for _, st := range s.streams {
		st.RequestStop()
	}
}

// RunStream runs iterations on st while claim grants them.
//
// claim is called before every iteration and must return false once the
// executor's budget is exhausted. The iteration delay is applied between
// iterations, never before the first. RunStream returns when the budget is
// spent, the context is cancelled, the abort signal is raised or the
// scheduler shuts down.
func (s *Scheduler) RunStream(ctx context.Context, st *Stream, claim func() bool) {
	s.shutdownWg.Add(1)
	defer s.shutdownWg.Done()
	defer st.MarkStopped()

	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		default:
		}

		if s.Aborted() || !claim() {
			return
		}

		if !first && !st.Pause(ctx, s.scenario.IterationDelay) {
			return
		}
		first = false

		if err := st.RunIteration(ctx); err != nil {
			return
		}
	}
}

// Shutdown stops all streams and waits up to timeout for them to exit.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	s.StopAll()

	done := make(chan struct{})
	go func() {
		s.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}
}

