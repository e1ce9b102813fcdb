//go:build !windows

package overlay

import "log/slog"

// New creates the platform overlay manager. Only Windows has a native
// backend; everywhere else the helper process draws the window.
func New(command string) Manager {
	if command == NativeBackend {
		slog.Warn("native overlay backend is windows-only, using helper process")
		command = "umbra-overlay"
	}
	return NewProcess(command)
}
