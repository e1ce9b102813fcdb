// umbra-overlay draws one borderless click-through black window over a
// monitor and adjusts its alpha from JSON commands on stdin. It is
// spawned per monitor by the umbra daemon.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/kbinani/screenshot"

	"github.com/umbradim/umbra/internal/overlay"
)

type shade struct {
	alpha atomic.Uint32
	quit  atomic.Bool

	width  int
	height int
}

func (s *shade) Update() error {
	if s.quit.Load() {
		return ebiten.Termination
	}
	return nil
}

func (s *shade) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{A: uint8(s.alpha.Load())})
}

func (s *shade) Layout(_, _ int) (int, int) {
	return s.width, s.height
}

// readCommands applies stdin commands until quit or EOF. The daemon
// closing our stdin is treated as an order to exit.
func (s *shade) readCommands() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var cmd overlay.Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			slog.Warn("bad overlay command", "error", err)
			continue
		}
		switch cmd.Op {
		case overlay.OpAlpha:
			v := cmd.Value
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			s.alpha.Store(uint32(v))
		case overlay.OpQuit:
			s.quit.Store(true)
			return
		}
	}
	s.quit.Store(true)
}

func run() error {
	monitor := flag.Int("monitor", 1, "1-based monitor to cover")
	flag.Parse()

	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return fmt.Errorf("no active displays")
	}
	idx := *monitor - 1
	if idx < 0 || idx >= n {
		idx = 0
	}
	bounds := screenshot.GetDisplayBounds(idx)

	s := &shade{
		width:  bounds.Dx(),
		height: bounds.Dy(),
	}
	go s.readCommands()

	configureWindow(bounds)
	return ebiten.RunGameWithOptions(s, &ebiten.RunGameOptions{
		ScreenTransparent: true,
		SkipTaskbar:       true,
		InitUnfocused:     true,
	})
}

func configureWindow(bounds image.Rectangle) {
	ebiten.SetWindowDecorated(false)
	ebiten.SetWindowFloating(true)
	ebiten.SetWindowMousePassthrough(true)
	ebiten.SetWindowPosition(bounds.Min.X, bounds.Min.Y)
	ebiten.SetWindowSize(bounds.Dx(), bounds.Dy())
	ebiten.SetTPS(30)
}

func main() {
	if err := run(); err != nil && err != ebiten.Termination {
		slog.Error("overlay exited", "error", err)
		os.Exit(1)
	}
}
