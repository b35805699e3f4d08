// Package testutil provides shared helpers for simulation tests.
package testutil

import "sync"

// Timeline produces monotonically increasing simulated instants for
// tests that drive an engine by hand. Unlike deriving instants inline,
// a Timeline can be reset so the same schedule replays identically.
//
// Thread-safety: all methods are safe for concurrent use.
type Timeline struct {
	mu    sync.Mutex
	start int64
	step  int64
	at    int64
}

// NewTimeline creates a timeline beginning at start and advancing by
// step milliseconds per call.
func NewTimeline(start, step int64) *Timeline {
	return &Timeline{start: start, step: step, at: start}
}

// Next returns the current instant and advances the timeline.
func (t *Timeline) Next() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	at := t.at
	t.at += t.step
	return at
}

// Reset rewinds the timeline to its start.
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.at = t.start
}
