// Command stonetick runs the idle tick game: it catches up on time spent
// offline, then ticks live until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/talgya/stonetick/internal/config"
	"github.com/talgya/stonetick/internal/display"
	"github.com/talgya/stonetick/internal/effects"
	"github.com/talgya/stonetick/internal/engine"
	"github.com/talgya/stonetick/internal/entropy"
	"github.com/talgya/stonetick/internal/persistence"
	"github.com/talgya/stonetick/internal/sched"
)

func main() {
	cfg, err := config.Load(os.Getenv("STONETICK_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	settings := cfg.Settings()
	slog.Info("stonetick starting",
		"interval", settings.Interval,
		"backend", cfg.Save.Backend,
		"path", cfg.Save.Path,
	)

	// ── Storage ───────────────────────────────────────────────────────
	store, closeStore := persistence.OpenOrMemory(cfg.Save.Backend, cfg.Save.Path)
	defer closeStore()

	loop := sched.NewLoop()
	gw := persistence.NewGateway(store, loop, cfg.Save.Key, cfg.Save.Version)

	// ── Effects ───────────────────────────────────────────────────────
	reg, err := effects.NewRegistry(effects.NewMining())
	if err != nil {
		slog.Error("failed to build effect registry", "error", err)
		os.Exit(1)
	}
	src := entropy.New(cfg.Random.Seed, cfg.Random.APIKey)

	out := display.NewAdapter(display.NewConsole(os.Stdout))
	sess := engine.NewSession(settings, loop, reg, src, gw, out, out)

	// ── Load or start fresh ──────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop.Post(func() {
		st := sess.Boot(ctx, gw, func() *engine.GameState {
			return engine.NewGameState(loop.Now(), cfg.Mining())
		})
		out.Show(st)
	})

	// ── Signals ───────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGUSR1 {
				loop.Post(func() { sess.ToggleMining() })
				continue
			}
			slog.Info("received signal, shutting down", "signal", sig)
			loop.Call(func() {
				saveCtx, saveCancel := context.WithTimeout(context.Background(), settings.SaveTimeout)
				defer saveCancel()
				sess.Shutdown(saveCtx)
			})
			cancel()
			return
		}
	}()

	fmt.Println("Stonetick is running. (Ctrl+C to stop, SIGUSR1 toggles mining)")

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("scheduler loop failed", "error", err)
		os.Exit(1)
	}

	fmt.Println("Stonetick stopped.")
}
