// Package history records what the control loop did: a live in-memory feed
// for the UI surfaces, a CSV sink matching the classic log format, and a
// SQLite store for queries. Everything here is best-effort; the loop never
// blocks on history.
package history

import (
	"sync"
	"time"
)

// Report is one monitor's slice of a status batch.
type Report struct {
	MonitorID  int     `json:"monitor"`
	Brightness float64 `json:"brightness"`
	Opacity    float64 `json:"opacity"`
	Dimmed     float64 `json:"dimmed"`
}

// Batch is a status snapshot across all active monitors at one instant.
type Batch struct {
	Time    time.Time `json:"time"`
	Paused  bool      `json:"paused"`
	Reports []Report  `json:"reports"`
}

// Sample is one persisted history row.
type Sample struct {
	Time       time.Time `json:"time"`
	MonitorID  int       `json:"monitor"`
	Brightness float64   `json:"brightness"`
	Opacity    float64   `json:"opacity"`
	Dimmed     float64   `json:"dimmed"`
}

// Sink persists samples. Implementations must tolerate being called from
// the loop goroutine and fail without blocking.
type Sink interface {
	Record(samples []Sample) error
}

// Feed keeps a bounded ring of recent status batches and fans the newest
// one out over a buffered channel. Emit never blocks; a slow consumer
// loses batches, not the loop.
type Feed struct {
	mu       sync.RWMutex
	batches  []Batch
	maxSize  int
	eventsCh chan Batch
}

// NewFeed creates a feed keeping at most maxPoints batches.
func NewFeed(maxPoints, eventBuffer int) *Feed {
	return &Feed{
		batches:  make([]Batch, 0, maxPoints),
		maxSize:  maxPoints,
		eventsCh: make(chan Batch, eventBuffer),
	}
}

// Emit appends a batch to the ring and publishes it.
func (f *Feed) Emit(b Batch) {
	f.mu.Lock()
	f.batches = append(f.batches, b)
	if len(f.batches) > f.maxSize {
		f.batches = f.batches[len(f.batches)-f.maxSize:]
	}
	f.mu.Unlock()

	select {
	case f.eventsCh <- b:
	default:
	}
}

// Events returns the channel of published batches.
func (f *Feed) Events() <-chan Batch {
	return f.eventsCh
}

// Latest returns the most recent batch, if any.
func (f *Feed) Latest() (Batch, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.batches) == 0 {
		return Batch{}, false
	}
	return f.batches[len(f.batches)-1], true
}

// Snapshot returns a copy of the ring, oldest first.
func (f *Feed) Snapshot() []Batch {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Batch, len(f.batches))
	copy(out, f.batches)
	return out
}

// Recent returns batches emitted within the window ending now, oldest
// first.
func (f *Feed) Recent(window time.Duration) []Batch {
	cutoff := time.Now().Add(-window)

	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []Batch
	for _, b := range f.batches {
		if !b.Time.Before(cutoff) {
			out = append(out, b)
		}
	}
	return out
}
