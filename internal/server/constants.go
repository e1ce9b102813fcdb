// Package server exposes the daemon control surface over HTTP and WebSocket
package server

import "time"

// Server configuration constants
const (
	// Per-connection inbound message rate limiting
	RateLimitPerSecond = 10
	RateLimitBurst     = 20

	// A status write slower than this drops the client rather than
	// stalling the broadcast
	StatusWriteTimeout = 5 * time.Second

	// History query bounds
	DefaultHistoryLimit = 600
	MaxHistoryLimit     = 10000
	DefaultHistorySince = 10 * time.Minute
)
