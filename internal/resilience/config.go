package resilience

import "time"

// Breaker tuning. History persistence gets the lenient profile: a
// misbehaving database should shed batches for a while, never stall
// the control loop waiting on disk.
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	HistoryThreshold         = 10
	HistoryResetTimeout      = 60 * time.Second
	HistoryHalfOpenSuccesses = 5
)

// Config holds circuit breaker settings.
type Config struct {
	Threshold         int           // consecutive failures before opening
	ResetTimeout      time.Duration // cool-down before a half-open probe
	HalfOpenSuccesses int           // probe successes needed to close again
}

// HistoryConfig returns the lenient profile guarding history sinks.
func HistoryConfig() Config {
	return Config{
		Threshold:         HistoryThreshold,
		ResetTimeout:      HistoryResetTimeout,
		HalfOpenSuccesses: HistoryHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
