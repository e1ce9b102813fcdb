// Package overlay owns the dimming windows drawn above each monitor.
package overlay

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/umbradim/umbra/internal/errors"
)

// Process runs one overlay helper process per monitor and drives its alpha
// over stdin. The helper draws the actual window; a dead helper surfaces as
// a set-opacity error on the next push.
type Process struct {
	command string
	mu      sync.Mutex
	procs   map[int]*helperProc
}

type helperProc struct {
	monitorID int
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	enc       *json.Encoder
	done      chan struct{}
}

// MonitorID returns the monitor this helper dims.
func (h *helperProc) MonitorID() int { return h.monitorID }

func (h *helperProc) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// NewProcess creates a subprocess overlay manager invoking command.
func NewProcess(command string) *Process {
	return &Process{
		command: command,
		procs:   make(map[int]*helperProc),
	}
}

// Create starts a helper for the monitor, replacing any existing one.
// The window comes up fully transparent.
func (p *Process) Create(monitorID int) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.procs[monitorID]; ok {
		slog.Warn("replacing existing overlay helper", "monitor", monitorID)
		p.stop(old)
		delete(p.procs, monitorID)
	}

	cmd := exec.Command(p.command, "--monitor", strconv.Itoa(monitorID))
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeOverlayCreateFailed, "open stdin for monitor %d helper", monitorID)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, errors.CodeOverlayCreateFailed, "start overlay helper for monitor %d", monitorID).
			WithMetadata("command", p.command)
	}

	h := &helperProc{
		monitorID: monitorID,
		cmd:       cmd,
		stdin:     stdin,
		enc:       json.NewEncoder(stdin),
		done:      make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		close(h.done)
		if err != nil {
			slog.Warn("overlay helper exited", "monitor", monitorID, "error", err)
		}
	}()

	p.procs[monitorID] = h
	slog.Info("overlay helper started", "monitor", monitorID, "pid", cmd.Process.Pid)
	return h, nil
}

// SetOpacity pushes a new alpha to the helper.
func (p *Process) SetOpacity(handle Handle, alpha uint8) error {
	h, ok := handle.(*helperProc)
	if !ok {
		return errors.New(errors.CodeOverlaySetFailed, "foreign overlay handle")
	}
	if h.exited() {
		return errors.Newf(errors.CodeOverlaySetFailed, "overlay helper for monitor %d is gone", h.monitorID)
	}
	if err := h.enc.Encode(Command{Op: OpAlpha, Value: int(alpha)}); err != nil {
		return errors.Wrapf(err, errors.CodeOverlaySetFailed, "push alpha to monitor %d helper", h.monitorID)
	}
	return nil
}

// Destroy stops the helper. Safe to call for an already dead helper.
func (p *Process) Destroy(handle Handle) error {
	h, ok := handle.(*helperProc)
	if !ok {
		return errors.New(errors.CodeOverlayDestroyFailed, "foreign overlay handle")
	}

	p.mu.Lock()
	if p.procs[h.monitorID] == h {
		delete(p.procs, h.monitorID)
	}
	p.stop(h)
	p.mu.Unlock()
	return nil
}

// DestroyAll stops every helper. Used on shutdown.
func (p *Process) DestroyAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, h := range p.procs {
		p.stop(h)
		delete(p.procs, id)
	}
}

// stop asks the helper to quit, then kills it after StopTimeout.
func (p *Process) stop(h *helperProc) {
	if h.exited() {
		return
	}
	_ = h.enc.Encode(Command{Op: OpQuit})
	_ = h.stdin.Close()

	t := time.NewTimer(StopTimeout)
	defer t.Stop()
	select {
	case <-h.done:
	case <-t.C:
		slog.Warn("overlay helper did not quit, killing", "monitor", h.monitorID)
		_ = h.cmd.Process.Kill()
		<-h.done
	}
}
