//go:build windows

package overlay

import (
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/kbinani/screenshot"
	"github.com/lxn/win"

	"github.com/umbradim/umbra/internal/errors"
)

const windowClassName = "UmbraOverlayClass"

var classOnce sync.Once

// New creates the platform overlay manager. The native backend draws
// layered windows in-process; any other command spawns helper processes.
func New(command string) Manager {
	if command == NativeBackend {
		return NewNative()
	}
	return NewProcess(command)
}

// Native draws one layered window per monitor in-process. Each window is
// pumped by its own locked OS thread; alpha changes go straight through
// SetLayeredWindowAttributes and need no round trip to the pump.
type Native struct {
	mu      sync.Mutex
	windows map[int]*nativeWindow
}

type nativeWindow struct {
	monitorID int
	hwnd      win.HWND
	done      chan struct{}
}

// MonitorID returns the monitor this window dims.
func (w *nativeWindow) MonitorID() int { return w.monitorID }

// NewNative creates the in-process Windows overlay manager.
func NewNative() *Native {
	return &Native{windows: make(map[int]*nativeWindow)}
}

// Create opens a fully transparent layered window covering the monitor,
// replacing any existing window for it.
func (n *Native) Create(monitorID int) (Handle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if old, ok := n.windows[monitorID]; ok {
		closeWindow(old)
		delete(n.windows, monitorID)
	}

	idx := monitorID - 1
	if idx < 0 || idx >= screenshot.NumActiveDisplays() {
		idx = 0
	}
	bounds := screenshot.GetDisplayBounds(idx)

	w := &nativeWindow{monitorID: monitorID, done: make(chan struct{})}
	ready := make(chan win.HWND, 1)
	go w.pump(int32(bounds.Min.X), int32(bounds.Min.Y), int32(bounds.Dx()), int32(bounds.Dy()), ready)

	hwnd := <-ready
	if hwnd == 0 {
		return nil, errors.Newf(errors.CodeOverlayCreateFailed, "create layered window for monitor %d", monitorID)
	}
	w.hwnd = hwnd
	n.windows[monitorID] = w
	return w, nil
}

// SetOpacity sets the window alpha.
func (n *Native) SetOpacity(handle Handle, alpha uint8) error {
	w, ok := handle.(*nativeWindow)
	if !ok {
		return errors.New(errors.CodeOverlaySetFailed, "foreign overlay handle")
	}
	if !win.SetLayeredWindowAttributes(w.hwnd, 0, alpha, win.LWA_ALPHA) {
		return errors.Newf(errors.CodeOverlaySetFailed, "set alpha on monitor %d window", w.monitorID)
	}
	return nil
}

// Destroy closes the window. Safe to call for an already closed window.
func (n *Native) Destroy(handle Handle) error {
	w, ok := handle.(*nativeWindow)
	if !ok {
		return errors.New(errors.CodeOverlayDestroyFailed, "foreign overlay handle")
	}

	n.mu.Lock()
	if n.windows[w.monitorID] == w {
		delete(n.windows, w.monitorID)
	}
	n.mu.Unlock()
	closeWindow(w)
	return nil
}

// DestroyAll closes every window. Used on shutdown.
func (n *Native) DestroyAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, w := range n.windows {
		closeWindow(w)
		delete(n.windows, id)
	}
}

func closeWindow(w *nativeWindow) {
	select {
	case <-w.done:
		return
	default:
	}
	win.PostMessage(w.hwnd, win.WM_CLOSE, 0, 0)

	t := time.NewTimer(StopTimeout)
	defer t.Stop()
	select {
	case <-w.done:
	case <-t.C:
	}
}

// pump creates the window and runs its message loop. The window must be
// created on the thread that pumps it.
func (w *nativeWindow) pump(x, y, width, height int32, ready chan<- win.HWND) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	registerClass()

	className, _ := syscall.UTF16PtrFromString(windowClassName)
	windowName, _ := syscall.UTF16PtrFromString("umbra")
	hwnd := win.CreateWindowEx(
		win.WS_EX_LAYERED|win.WS_EX_TRANSPARENT|win.WS_EX_TOPMOST|win.WS_EX_NOACTIVATE|win.WS_EX_TOOLWINDOW,
		className, windowName, win.WS_POPUP,
		x, y, width, height,
		0, 0, win.GetModuleHandle(nil), nil)
	if hwnd == 0 {
		ready <- 0
		return
	}

	// Fully transparent until the loop pushes a real alpha.
	win.SetLayeredWindowAttributes(hwnd, 0, 0, win.LWA_ALPHA)
	win.ShowWindow(hwnd, win.SW_SHOWNOACTIVATE)
	ready <- hwnd

	var msg win.MSG
	for win.GetMessage(&msg, 0, 0, 0) > 0 {
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}
}

func registerClass() {
	classOnce.Do(func() {
		className, _ := syscall.UTF16PtrFromString(windowClassName)
		wc := win.WNDCLASSEX{
			LpfnWndProc:   syscall.NewCallback(overlayWndProc),
			HInstance:     win.GetModuleHandle(nil),
			HbrBackground: win.HBRUSH(win.GetStockObject(win.BLACK_BRUSH)),
			LpszClassName: className,
		}
		wc.CbSize = uint32(unsafe.Sizeof(wc))
		win.RegisterClassEx(&wc)
	})
}

func overlayWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case win.WM_DESTROY:
		win.PostQuitMessage(0)
		return 0
	}
	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}
