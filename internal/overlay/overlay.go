// Package overlay owns the dimming windows drawn above each monitor.
// A window is borderless, click-through, topmost, and uniformly black;
// its alpha is the actuator the control loop drives.
package overlay

import "time"

// Overlay constants
const (
	// Grace period between asking a helper to quit and killing it
	StopTimeout = time.Second

	// Stdin protocol operations
	OpAlpha = "alpha"
	OpQuit  = "quit"

	// NativeBackend selects in-process layered windows instead of a
	// helper command. Only meaningful on Windows.
	NativeBackend = "native"
)

// Command is one JSON line on an overlay helper's stdin.
type Command struct {
	Op    string `json:"op"`
	Value int    `json:"value,omitempty"`
}

// Handle is an opaque reference to one live overlay window.
type Handle interface {
	MonitorID() int
}

// Manager owns overlay windows. Create replaces any existing overlay for
// the same monitor. Calls are serialized by the session manager.
type Manager interface {
	Create(monitorID int) (Handle, error)
	SetOpacity(h Handle, alpha uint8) error
	Destroy(h Handle) error
	DestroyAll()
}
