// Package engine provides the live tick clock and the offline catch-up
// replay. Both advance GameState through Step, one tick at a time, on the
// single scheduler loop.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/talgya/stonetick/internal/effects"
	"github.com/talgya/stonetick/internal/entropy"
	"github.com/talgya/stonetick/internal/sched"
)

// Settings tunes the clock and the replay.
type Settings struct {
	Interval        time.Duration // One logical tick per interval
	CountdownEvery  time.Duration // Countdown refresh period (display only)
	SaveEvery       uint64        // Live ticks between saves
	HistoryLimit    int           // Max RecentEvents length
	BatchDivisor    int           // Replay aims for about this many progress updates
	MinBatch        int
	BatchYield      time.Duration // Delay between replay batches
	FinalizeDelay   time.Duration // Pause after the last batch before the summary
	SummaryDuration time.Duration
	SaveTimeout     time.Duration
}

// DefaultSettings returns the standard tuning.
func DefaultSettings() Settings {
	return Settings{
		Interval:        1250 * time.Millisecond,
		CountdownEvery:  50 * time.Millisecond,
		SaveEvery:       5,
		HistoryLimit:    5,
		BatchDivisor:    100,
		MinBatch:        1,
		BatchYield:      time.Millisecond,
		FinalizeDelay:   500 * time.Millisecond,
		SummaryDuration: 3 * time.Second,
		SaveTimeout:     5 * time.Second,
	}
}

// Saver persists a game state. Errors are logged by the caller, never fatal.
type Saver interface {
	Save(ctx context.Context, st *GameState) error
}

// TickReport is what a live tick exposes to the display layer.
type TickReport struct {
	Outcome effects.Outcome
	State   *GameState // Copy taken after the tick was applied
}

// Observer receives live-only side effects. Replayed ticks never reach it.
type Observer interface {
	TickProcessed(rep TickReport)
	Countdown(remaining time.Duration)
}

// Clock fires one logical tick per interval while running.
type Clock struct {
	settings Settings
	sched    sched.Scheduler
	registry *effects.Registry
	source   entropy.Source
	saver    Saver
	observer Observer

	state      *GameState
	running    bool
	generation uint64
}

// NewClock creates a stopped clock. saver and observer may be nil.
func NewClock(settings Settings, s sched.Scheduler, reg *effects.Registry, src entropy.Source, saver Saver, obs Observer) *Clock {
	return &Clock{
		settings: settings,
		sched:    s,
		registry: reg,
		source:   src,
		saver:    saver,
		observer: obs,
	}
}

// Adopt hands st to the clock. Called once at the replay/live boundary.
func (c *Clock) Adopt(st *GameState) {
	c.state = st
}

// State returns the owned state (nil before Adopt).
func (c *Clock) State() *GameState { return c.state }

// Running reports whether the clock is ticking.
func (c *Clock) Running() bool { return c.running }

// Start begins ticking. No-op if already running.
func (c *Clock) Start() {
	if c.running {
		return
	}
	if c.state == nil {
		c.state = NewGameState(c.sched.Now(), false)
	}

	c.running = true
	c.generation++
	gen := c.generation
	c.state.LastTick = c.sched.Now()

	var tick, countdown sched.Timer
	tick = c.sched.ScheduleRepeating(c.settings.Interval, func() {
		if !c.live(gen) {
			tick.Stop()
			return
		}
		c.onTick()
	})
	countdown = c.sched.ScheduleRepeating(c.settings.CountdownEvery, func() {
		if !c.live(gen) {
			countdown.Stop()
			return
		}
		c.refreshCountdown()
	})

	slog.Info("tick clock started", "tick", c.state.TickCount, "interval", c.settings.Interval)
}

// Stop halts ticking. Pending callbacks observe the flag and do nothing.
func (c *Clock) Stop() {
	if !c.running {
		return
	}
	c.running = false
	slog.Info("tick clock stopped", "tick", c.state.TickCount)
}

func (c *Clock) live(gen uint64) bool {
	return c.running && gen == c.generation
}

func (c *Clock) onTick() {
	out := Step(c.state, c.registry, c.source, c.settings.HistoryLimit)
	c.state.LastTick = c.sched.Now()

	if c.observer != nil {
		c.observer.TickProcessed(TickReport{Outcome: out, State: c.state.Clone()})
	}

	if c.settings.SaveEvery > 0 && c.state.TickCount%c.settings.SaveEvery == 0 {
		c.save()
	}

	slog.Debug("tick", "tick", c.state.TickCount, "random", out.Random, "band", out.Band.String())
}

func (c *Clock) refreshCountdown() {
	if c.observer == nil {
		return
	}
	c.observer.Countdown(Remaining(c.settings.Interval, c.state.LastTick, c.sched.Now()))
}

// SetMining enables or disables the mining handler.
func (c *Clock) SetMining(on bool) {
	if c.state == nil {
		return
	}
	if c.state.Flags == nil {
		c.state.Flags = make(map[string]bool, 1)
	}
	c.state.Flags[effects.MiningName] = on
	slog.Info("mining toggled", "enabled", on, "tick", c.state.TickCount)
}

func (c *Clock) save() {
	if c.saver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.settings.SaveTimeout)
	defer cancel()
	if err := c.saver.Save(ctx, c.state); err != nil {
		slog.Error("auto-save failed", "tick", c.state.TickCount, "error", err)
	}
}

// Remaining is the countdown to the next tick, never negative.
func Remaining(interval time.Duration, lastTick, now time.Time) time.Duration {
	return max(0, interval-now.Sub(lastTick))
}
