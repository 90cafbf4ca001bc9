package worker

import (
	"sync/atomic"
	"time"
)

// State is the process-wide worker state. The shutdown flag is written by
// the signal handler goroutine and read by the loop, and the health server
// reads every field concurrently, so all access goes through atomics.
type State struct {
	shutdownRequested atomic.Bool
	jobInProgress     atomic.Bool
	keepWarmUntil     atomic.Int64 // unix milliseconds, 0 = never set
	emptyPolls        atomic.Int32
}

// NewState returns a zeroed worker state.
func NewState() *State {
	return &State{}
}

// RequestShutdown marks the process as shutting down. Safe to call from a
// signal handler; it only sets a flag.
func (s *State) RequestShutdown() {
	s.shutdownRequested.Store(true)
}

// ShutdownRequested reports whether a termination request has arrived.
func (s *State) ShutdownRequested() bool {
	return s.shutdownRequested.Load()
}

// SetJobInProgress flips the in-flight flag. True exactly while one
// pipeline executes.
func (s *State) SetJobInProgress(v bool) {
	s.jobInProgress.Store(v)
}

// JobInProgress reports whether a pipeline is currently executing.
func (s *State) JobInProgress() bool {
	return s.jobInProgress.Load()
}

// KeepWarmUntil returns the tracked warmup expiry, or a zero time if no
// warmup message has ever been seen.
func (s *State) KeepWarmUntil() time.Time {
	ms := s.keepWarmUntil.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (s *State) setKeepWarmUntil(t time.Time) {
	s.keepWarmUntil.Store(t.UnixMilli())
}

// ResetEmptyPolls clears the consecutive empty-poll counter.
func (s *State) ResetEmptyPolls() {
	s.emptyPolls.Store(0)
}

// IncrementEmptyPolls bumps the counter and returns the new value.
func (s *State) IncrementEmptyPolls() int {
	return int(s.emptyPolls.Add(1))
}

// EmptyPolls returns the current consecutive empty-poll count.
func (s *State) EmptyPolls() int {
	return int(s.emptyPolls.Load())
}

// Snapshot is a point-in-time view of the worker state for the status
// endpoint.
type Snapshot struct {
	ShutdownRequested bool      `json:"shutdown_requested"`
	JobInProgress     bool      `json:"job_in_progress"`
	WarmupActive      bool      `json:"warmup_active"`
	KeepWarmUntil     time.Time `json:"keep_warm_until,omitzero"`
	EmptyPolls        int       `json:"empty_polls"`
}

// Snapshot captures the current state.
func (s *State) Snapshot(now time.Time) Snapshot {
	until := s.KeepWarmUntil()
	return Snapshot{
		ShutdownRequested: s.ShutdownRequested(),
		JobInProgress:     s.JobInProgress(),
		WarmupActive:      !until.IsZero() && now.Before(until),
		KeepWarmUntil:     until,
		EmptyPolls:        s.EmptyPolls(),
	}
}
