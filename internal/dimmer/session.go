package dimmer

import (
	"github.com/umbradim/umbra/internal/luminance"
	"github.com/umbradim/umbra/internal/overlay"
)

// State is a session's position in the Idle -> Active -> Paused machine.
// Idle sessions have no overlay and exist only transiently during
// reconciliation; teardown goes straight from any state to removal.
type State int

const (
	StateIdle State = iota
	StateActive
	StatePaused
)

func (s State) String() string {
	return [...]string{"idle", "active", "paused"}[s]
}

// Session is the per-monitor control loop state. Exactly one session
// exists per active monitor. The opacity fields are guarded by the
// manager mutex; only the loop and reconciliation touch them.
type Session struct {
	monitorID int
	handle    overlay.Handle
	estimator luminance.Estimator

	current        float64
	target         float64
	lastBrightness float64
	state          State
}

// MonitorID returns the 1-based monitor ordinal this session dims.
func (s *Session) MonitorID() int { return s.monitorID }

// SessionStatus is a read-only snapshot of one session for the API surface.
type SessionStatus struct {
	MonitorID  int     `json:"monitor"`
	Opacity    float64 `json:"opacity"`
	Target     float64 `json:"target"`
	Brightness float64 `json:"brightness"`
	State      string  `json:"state"`
}

func (s *Session) status() SessionStatus {
	return SessionStatus{
		MonitorID:  s.monitorID,
		Opacity:    s.current,
		Target:     s.target,
		Brightness: s.lastBrightness,
		State:      s.state.String(),
	}
}
