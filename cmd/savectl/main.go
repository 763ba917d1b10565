// Command savectl inspects or resets the stored stonetick save.
//
//	savectl show    print the snapshot and how many ticks are owed
//	savectl reset   delete the snapshot
//	savectl slots   list stored keys (sqlite backend)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/stonetick/internal/config"
	"github.com/talgya/stonetick/internal/display"
	"github.com/talgya/stonetick/internal/engine"
	"github.com/talgya/stonetick/internal/persistence"
	"github.com/talgya/stonetick/internal/sched"
)

// wallClock is a sched.Clock on system time.
type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

var _ sched.Clock = wallClock{}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(os.Getenv("STONETICK_CONFIG"))
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := persistence.OpenBackend(cfg.Save.Backend, cfg.Save.Path)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	gw := persistence.NewGateway(store, wallClock{}, cfg.Save.Key, cfg.Save.Version)
	ctx := context.Background()

	switch os.Args[1] {
	case "show":
		err = show(ctx, gw, cfg.Settings().Interval)
	case "reset":
		err = reset(ctx, gw)
	case "slots":
		err = slots(ctx, store)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error(os.Args[1]+" failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: savectl show|reset|slots")
}

func show(ctx context.Context, gw *persistence.Gateway, interval time.Duration) error {
	snap, err := gw.Read(ctx)
	if errors.Is(err, persistence.ErrNoSnapshot) {
		fmt.Println("No save data.")
		return nil
	}
	if err != nil {
		return err
	}

	st := snap.State
	elapsed := gw.Elapsed(snap)
	missed := engine.MissedTicks(elapsed, interval)

	fmt.Printf("Game:        %s\n", st.GameID)
	fmt.Printf("Schema:      %s", snap.SchemaVersion)
	if snap.SchemaVersion != gw.Version() {
		fmt.Printf(" (current %s)", gw.Version())
	}
	fmt.Println()
	fmt.Printf("Tick:        %s\n", humanize.Comma(int64(st.TickCount)))
	fmt.Printf("Saved:       %s (%s)\n", snap.LastSave.Format(time.RFC3339), humanize.Time(snap.LastSave))
	fmt.Printf("Resources:   %s\n", display.FormatBalances(st.Resources))
	fmt.Printf("Effects:     %s\n", formatFlags(st.Flags))
	fmt.Printf("Owed ticks:  %s (offline %s)\n", humanize.Comma(int64(missed)), engine.FormatOffline(elapsed))
	if len(st.RecentEvents) > 0 {
		fmt.Println("Recent events:")
		for _, e := range st.RecentEvents {
			fmt.Println("  " + e)
		}
	}
	return nil
}

func reset(ctx context.Context, gw *persistence.Gateway) error {
	if !gw.HasSave(ctx) {
		fmt.Println("No save data.")
		return nil
	}
	if err := gw.Reset(ctx); err != nil {
		return err
	}
	fmt.Println("Save data deleted.")
	return nil
}

func slots(ctx context.Context, store persistence.Storage) error {
	db, ok := store.(*persistence.DB)
	if !ok {
		return errors.New("slots needs the sqlite backend")
	}
	list, err := db.Slots(ctx)
	if err != nil {
		return err
	}
	for _, s := range list {
		fmt.Printf("%-24s %10s  %s\n", s.Key, humanize.Bytes(uint64(s.Size)),
			humanize.Time(time.UnixMilli(s.UpdatedAt)))
	}
	return nil
}

func formatFlags(flags map[string]bool) string {
	if len(flags) == 0 {
		return "none"
	}
	names := make([]string, 0, len(flags))
	for k, on := range flags {
		state := "off"
		if on {
			state = "on"
		}
		names = append(names, k+"="+state)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
