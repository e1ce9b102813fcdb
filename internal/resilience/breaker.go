// Package resilience keeps flaky collaborators from wedging the control
// loop: bounded retries for overlay creation, a circuit breaker for
// history persistence.
package resilience

import (
	"errors"
	"sync/atomic"
	"time"
)

// State is the breaker's position.
type State uint32

const (
	Closed   State = iota // calls flow normally
	Open                  // calls fail fast
	HalfOpen              // probing whether the collaborator recovered
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrOpen is returned while the breaker is shedding calls.
var ErrOpen = errors.New("circuit open")

// Breaker opens after a streak of consecutive failures, sheds calls for
// a cool-down, then probes recovery. State lives in atomics so Execute
// is safe from any goroutine, including the store's flush workers.
type Breaker struct {
	cfg         Config
	state       atomic.Uint32
	failures    atomic.Int32
	probeWins   atomic.Int32
	lastFailure atomic.Int64 // unix nanos

	onChange func(from, to State)
}

// New creates a breaker. Zero fields in cfg fall back to defaults.
func New(cfg Config) *Breaker {
	b := &Breaker{cfg: cfg.withDefaults()}
	b.state.Store(uint32(Closed))
	return b
}

// WithHook registers a transition callback. The owner decides how to
// log or count state changes.
func (b *Breaker) WithHook(fn func(from, to State)) *Breaker {
	b.onChange = fn
	return b
}

// Execute runs fn unless the breaker is shedding calls, and feeds the
// outcome back into the failure streak.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		b.Failure()
		return err
	}
	b.Success()
	return nil
}

// Allow reports whether a call may proceed. An open breaker whose
// cool-down has passed moves to half-open and lets the call through as
// a probe.
func (b *Breaker) Allow() error {
	if State(b.state.Load()) != Open {
		return nil
	}
	if b.cooledDown() {
		b.shift(HalfOpen)
		return nil
	}
	return ErrOpen
}

// Success records a successful call.
func (b *Breaker) Success() {
	switch State(b.state.Load()) {
	case HalfOpen:
		if b.probeWins.Add(1) >= int32(b.cfg.HalfOpenSuccesses) {
			b.shift(Closed)
		}
	case Closed:
		b.failures.Store(0)
	}
}

// Failure records a failed call. A failed probe reopens immediately.
func (b *Breaker) Failure() {
	b.lastFailure.Store(time.Now().UnixNano())
	streak := b.failures.Add(1)

	switch State(b.state.Load()) {
	case HalfOpen:
		b.shift(Open)
	case Closed:
		if streak >= int32(b.cfg.Threshold) {
			b.shift(Open)
		}
	}
}

// State returns the current position.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

func (b *Breaker) shift(to State) {
	from := State(b.state.Swap(uint32(to)))
	if from == to {
		return
	}
	if to == Closed {
		b.failures.Store(0)
	}
	b.probeWins.Store(0)

	if b.onChange != nil {
		b.onChange(from, to)
	}
}

func (b *Breaker) cooledDown() bool {
	last := b.lastFailure.Load()
	if last == 0 {
		return true
	}
	return time.Since(time.Unix(0, last)) > b.cfg.ResetTimeout
}
