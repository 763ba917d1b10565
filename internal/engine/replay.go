package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/stonetick/internal/effects"
	"github.com/talgya/stonetick/internal/entropy"
	"github.com/talgya/stonetick/internal/sched"
)

// Phase is the replay state machine position.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseComputingMissed
	PhaseReplaying
	PhaseFinalizing
	PhaseLive
)

func (p Phase) String() string {
	switch p {
	case PhaseComputingMissed:
		return "computing_missed"
	case PhaseReplaying:
		return "replaying"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseLive:
		return "live"
	default:
		return "idle"
	}
}

// Progress is reported after every replay batch. Never persisted.
type Progress struct {
	Processed int
	Total     int
	Label     string
}

// Fraction returns Processed/Total in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 1
	}
	return float64(p.Processed) / float64(p.Total)
}

// ProgressReporter shows aggregate replay feedback.
type ProgressReporter interface {
	ShowProgress(p Progress)
	HideProgress()
	ShowSummary(text string, d time.Duration)
}

// MissedTicks is floor(elapsed / interval), never negative.
func MissedTicks(elapsed, interval time.Duration) int {
	if elapsed <= 0 || interval <= 0 {
		return 0
	}
	return int(elapsed / interval)
}

// BatchSize is max(minBatch, floor(missed / divisor)).
func BatchSize(missed, divisor, minBatch int) int {
	n := 0
	if divisor > 0 {
		n = missed / divisor
	}
	return max(minBatch, n, 1)
}

// Replay converts an offline interval into logical ticks, runs them in
// batches that yield to the loop, then hands the state to the Clock.
type Replay struct {
	settings Settings
	sched    sched.Scheduler
	registry *effects.Registry
	source   entropy.Source
	saver    Saver
	reporter ProgressReporter
	clock    *Clock

	state     *GameState
	phase     Phase
	elapsed   time.Duration
	began     time.Time
	missed    int
	processed int
	batch     int
	aborted   bool
}

// NewReplay creates an idle replay. saver and reporter may be nil.
func NewReplay(settings Settings, s sched.Scheduler, reg *effects.Registry, src entropy.Source, saver Saver, reporter ProgressReporter, clock *Clock) *Replay {
	return &Replay{
		settings: settings,
		sched:    s,
		registry: reg,
		source:   src,
		saver:    saver,
		reporter: reporter,
		clock:    clock,
	}
}

// Phase returns the current phase.
func (r *Replay) Phase() Phase { return r.phase }

// State returns the state the replay owns, or nil once handed to the clock.
func (r *Replay) State() *GameState { return r.state }

// Processed returns how many missed ticks have been replayed.
func (r *Replay) Processed() int { return r.processed }

// Reached returns the wall-clock instant the replay has caught up to,
// while a replay is unfinished.
func (r *Replay) Reached() (time.Time, bool) {
	if r.state == nil || (r.phase != PhaseReplaying && r.phase != PhaseFinalizing) {
		return time.Time{}, false
	}
	start := r.began.Add(-r.elapsed)
	return start.Add(time.Duration(r.processed) * r.settings.Interval), true
}

// Begin takes ownership of st and starts catching up elapsed time.
func (r *Replay) Begin(st *GameState, elapsed time.Duration) {
	if r.phase != PhaseIdle {
		slog.Warn("replay already begun", "phase", r.phase.String())
		return
	}
	r.state = st
	r.elapsed = elapsed
	r.began = r.sched.Now()
	r.phase = PhaseComputingMissed
	r.missed = MissedTicks(elapsed, r.settings.Interval)

	if r.missed <= 0 {
		r.goLive()
		return
	}

	r.phase = PhaseReplaying
	r.batch = BatchSize(r.missed, r.settings.BatchDivisor, r.settings.MinBatch)
	slog.Info("replaying offline ticks",
		"missed", r.missed,
		"batch", r.batch,
		"offline", FormatOffline(elapsed),
		"from_tick", st.TickCount,
	)
	if r.reporter != nil {
		r.reporter.ShowProgress(Progress{
			Processed: 0,
			Total:     r.missed,
			Label:     fmt.Sprintf("Processing %s offline ticks...", humanize.Comma(int64(r.missed))),
		})
	}
	r.runBatch()
}

// Abort prevents further batches from being scheduled. A batch in flight
// always completes, so the state stays on a tick boundary.
func (r *Replay) Abort() {
	if r.phase == PhaseReplaying || r.phase == PhaseFinalizing {
		slog.Info("replay aborted", "processed", r.processed, "missed", r.missed)
	}
	r.aborted = true
}

func (r *Replay) runBatch() {
	n := min(r.batch, r.missed-r.processed)
	for i := 0; i < n; i++ {
		Step(r.state, r.registry, r.source, r.settings.HistoryLimit)
		r.processed++
	}

	if r.reporter != nil {
		r.reporter.ShowProgress(Progress{
			Processed: r.processed,
			Total:     r.missed,
			Label:     fmt.Sprintf("Processed %d/%d ticks", r.processed, r.missed),
		})
	}

	if r.processed >= r.missed {
		r.phase = PhaseFinalizing
		r.sched.ScheduleOnce(r.settings.FinalizeDelay, r.finish)
		return
	}
	if r.aborted {
		return
	}
	r.sched.ScheduleOnce(r.settings.BatchYield, r.runBatch)
}

func (r *Replay) finish() {
	if r.aborted {
		return
	}
	if r.reporter != nil {
		r.reporter.HideProgress()
		r.reporter.ShowSummary(Summary(r.missed, r.elapsed), r.settings.SummaryDuration)
	}
	r.state.LastTick = r.sched.Now()
	slog.Info("offline catch-up complete", "ticks", r.missed, "tick", r.state.TickCount)

	if r.saver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), r.settings.SaveTimeout)
		if err := r.saver.Save(ctx, r.state); err != nil {
			slog.Error("post-replay save failed", "error", err)
		}
		cancel()
	}
	r.goLive()
}

func (r *Replay) goLive() {
	r.phase = PhaseLive
	st := r.state
	r.state = nil
	r.clock.Adopt(st)
	r.clock.Start()
}

// Summary is the welcome-back text shown after catch-up.
func Summary(ticks int, offline time.Duration) string {
	return fmt.Sprintf("Welcome back!\nOffline for: %s\nTicks processed: %s",
		FormatOffline(offline), humanize.Comma(int64(ticks)))
}

// FormatOffline renders "2h 5m", "3m 12s" or "42s".
func FormatOffline(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int64(d / time.Hour)
	minutes := int64(d%time.Hour) / int64(time.Minute)
	seconds := int64(d%time.Minute) / int64(time.Second)

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
