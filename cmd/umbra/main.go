// umbra daemon and control CLI - adaptive screen dimming
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/umbradim/umbra/internal/capture"
	"github.com/umbradim/umbra/internal/client"
	"github.com/umbradim/umbra/internal/config"
	"github.com/umbradim/umbra/internal/dimmer"
	"github.com/umbradim/umbra/internal/history"
	"github.com/umbradim/umbra/internal/overlay"
	"github.com/umbradim/umbra/internal/server"
	"github.com/umbradim/umbra/internal/tui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr string

	root := &cobra.Command{
		Use:           "umbra",
		Short:         "Adaptive screen dimmer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8686", "daemon address")

	root.AddCommand(newRunCmd())
	root.AddCommand(newStatusCmd(&addr))
	root.AddCommand(newPauseCmd(&addr))
	root.AddCommand(newResumeCmd(&addr))
	root.AddCommand(newMonitorsCmd(&addr))
	root.AddCommand(newStrengthCmd(&addr))
	root.AddCommand(newHistoryCmd(&addr))
	root.AddCommand(newWatchCmd(&addr))
	root.AddCommand(newTUICmd(&addr))
	return root
}

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the dimming daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDaemon(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file (env vars still win)")
	return cmd
}

func runDaemon(configPath string) error {
	if configPath == "" {
		configPath = os.Getenv("UMBRA_CONFIG")
	}

	var cfg *config.Config
	if configPath != "" {
		c, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = c
	} else {
		cfg = config.Load()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	capturer := capture.NewScreen()
	defer capturer.Close()
	overlays := overlay.New(cfg.OverlayCommand)

	var sinks []history.Sink
	var store *history.Store
	if cfg.DBPath != "" {
		s, err := history.OpenStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		store = s
		sinks = append(sinks, s)
	}
	if cfg.CSVPath != "" {
		csvSink, err := history.NewCSVSink(cfg.CSVPath)
		if err != nil {
			return err
		}
		defer func() { _ = csvSink.Close() }()
		sinks = append(sinks, csvSink)
	}

	manager, err := dimmer.New(cfg, capturer, overlays, clockwork.NewRealClock(), sinks...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.SetActiveMonitors(ctx, cfg.Monitors); err != nil {
		// Partial application: the failed monitors are excluded, the
		// rest keep working. Fatal only when nothing came up.
		slog.Error("monitor activation incomplete", "error", err)
		if len(manager.ActiveMonitors()) == 0 {
			manager.Stop()
			return err
		}
	}

	go manager.Run(ctx)

	var querier server.HistoryQuerier
	if store != nil {
		querier = store
	}
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.New(manager, querier).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("umbra daemon starting", "http", cfg.HTTPAddr, "monitors", cfg.Monitors)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	// Stop waits for the in-flight tick and destroys every overlay.
	manager.Stop()
	slog.Info("shutdown complete")
	return nil
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newStatusCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := client.New(*addr).Status(cmd.Context())
			if err != nil {
				return err
			}
			state := "dimming"
			if st.Paused {
				state = "paused"
			}
			fmt.Printf("state: %s  strength: %.0f%%  displays: %d\n", state, st.Strength*100, st.Displays)
			for _, s := range st.Sessions {
				fmt.Printf("monitor %d: opacity %.1f (target %.1f)  brightness %.1f  [%s]\n",
					s.MonitorID, s.Opacity, s.Target, s.Brightness, s.State)
			}
			return nil
		},
	}
}

func newPauseCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Clear all overlays and hold dimming off",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := client.New(*addr).Pause(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("paused")
			return nil
		},
	}
}

func newResumeCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume dimming",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := client.New(*addr).Resume(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("resumed")
			return nil
		},
	}
}

func newMonitorsCmd(addr *string) *cobra.Command {
	monitors := &cobra.Command{
		Use:   "monitors",
		Short: "Inspect or change the dimmed monitor set",
	}

	monitors.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List attached displays and the active set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := client.New(*addr).Monitors(cmd.Context())
			if err != nil {
				return err
			}
			active := make(map[int]bool, len(m.Active))
			for _, id := range m.Active {
				active[id] = true
			}
			for i := 1; i <= m.Displays; i++ {
				mark := " "
				if active[i] {
					mark = "*"
				}
				fmt.Printf("%s monitor %d\n", mark, i)
			}
			return nil
		},
	})

	monitors.AddCommand(&cobra.Command{
		Use:   "set <ids>",
		Short: "Set the active monitor set, e.g. 'set 1,2'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseMonitorList(args[0])
			if err != nil {
				return err
			}
			m, err := client.New(*addr).SetMonitors(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fmt.Printf("active: %v\n", m.Active)
			return nil
		},
	})

	return monitors
}

func parseMonitorList(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid monitor id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no monitor ids in %q", s)
	}
	return ids, nil
}

func newStrengthCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "strength <0..1>",
		Short: "Set the dim-intensity multiplier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid strength %q", args[0])
			}
			if err := client.New(*addr).SetStrength(cmd.Context(), v); err != nil {
				return err
			}
			fmt.Printf("strength: %.0f%%\n", v*100)
			return nil
		},
	}
}

func newHistoryCmd(addr *string) *cobra.Command {
	var monitor int
	var since time.Duration
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query recorded brightness/opacity samples",
		RunE: func(cmd *cobra.Command, _ []string) error {
			samples, err := client.New(*addr).History(cmd.Context(), monitor, since, limit)
			if err != nil {
				return err
			}
			for _, s := range samples {
				fmt.Printf("%s  monitor %d  brightness %6.1f  opacity %6.1f  dimmed %6.1f\n",
					s.Time.Local().Format("15:04:05.000"), s.MonitorID, s.Brightness, s.Opacity, s.Dimmed)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&monitor, "monitor", 0, "restrict to one monitor (0 = all)")
	cmd.Flags().DurationVar(&since, "since", 10*time.Minute, "how far back to query")
	cmd.Flags().IntVar(&limit, "limit", 600, "maximum samples")
	return cmd
}

func newWatchCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream live status to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			ch, err := client.New(*addr).WatchStatus(ctx)
			if err != nil {
				return err
			}
			for batch := range ch {
				for _, r := range batch.Reports {
					state := ""
					if batch.Paused {
						state = "  [paused]"
					}
					fmt.Printf("%s  monitor %d  brightness %6.1f  opacity %6.1f%s\n",
						batch.Time.Local().Format("15:04:05"), r.MonitorID, r.Brightness, r.Opacity, state)
				}
			}
			return nil
		},
	}
}

func newTUICmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Live terminal dashboard",
		RunE: func(_ *cobra.Command, _ []string) error {
			return tui.Run(client.New(*addr))
		},
	}
}
