package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/talgya/stonetick/internal/effects"
	"github.com/talgya/stonetick/internal/entropy"
	"github.com/talgya/stonetick/internal/sched"
)

// AnchoredSaver saves with an explicit save timestamp. Used when a replay
// is interrupted so the unreplayed remainder is still owed on next load.
type AnchoredSaver interface {
	SaveAt(ctx context.Context, st *GameState, at time.Time) error
}

// Session wires a Replay to a Clock for one process lifetime. All methods
// must run on the scheduler loop.
type Session struct {
	Clock  *Clock
	Replay *Replay

	settings Settings
	saver    Saver
}

// NewSession builds the clock and replay sharing one registry and source.
func NewSession(settings Settings, s sched.Scheduler, reg *effects.Registry, src entropy.Source, saver Saver, obs Observer, reporter ProgressReporter) *Session {
	clock := NewClock(settings, s, reg, src, saver, obs)
	return &Session{
		Clock:    clock,
		Replay:   NewReplay(settings, s, reg, src, saver, reporter, clock),
		settings: settings,
		saver:    saver,
	}
}

// Loader reads the stored game and how long ago it was saved. ok is false
// when nothing usable is stored.
type Loader interface {
	LoadState(ctx context.Context) (st *GameState, elapsed time.Duration, ok bool)
}

// Boot resumes the stored game, or starts newState() when the loader has
// nothing usable. The returned state is the one handed to Resume.
func (s *Session) Boot(ctx context.Context, l Loader, newState func() *GameState) *GameState {
	st, elapsed, ok := l.LoadState(ctx)
	if !ok {
		st, elapsed = newState(), 0
		slog.Info("new game", "game", st.GameID)
	} else {
		slog.Info("resuming game",
			"game", st.GameID,
			"tick", st.TickCount,
			"offline", FormatOffline(elapsed),
		)
	}
	s.Resume(st, elapsed)
	return st
}

// Resume starts from st, replaying elapsed offline time first.
func (s *Session) Resume(st *GameState, elapsed time.Duration) {
	st.Normalize(s.settings.HistoryLimit)
	s.Replay.Begin(st, elapsed)
}

// Current returns whichever state is authoritative right now.
func (s *Session) Current() *GameState {
	if st := s.Replay.State(); st != nil {
		return st
	}
	return s.Clock.State()
}

// ToggleMining flips the mining flag on the current state.
func (s *Session) ToggleMining() bool {
	st := s.Current()
	if st == nil {
		return false
	}
	on := !st.Flags[effects.MiningName]
	if s.Replay.Phase() == PhaseLive {
		s.Clock.SetMining(on)
	} else {
		st.Flags[effects.MiningName] = on
		slog.Info("mining toggled during catch-up", "enabled", on)
	}
	return on
}

// Shutdown stops ticking and makes one best-effort save. With an
// AnchoredSaver the save is stamped with the instant the state actually
// reached (replay position, or the last live tick), so the time not yet
// turned into ticks is still owed on the next load.
func (s *Session) Shutdown(ctx context.Context) {
	s.Replay.Abort()
	s.Clock.Stop()

	st := s.Current()
	if st == nil || s.saver == nil {
		return
	}

	at, anchored := s.Replay.Reached()
	if !anchored && !st.LastTick.IsZero() {
		at, anchored = st.LastTick, true
	}

	var err error
	if as, ok := s.saver.(AnchoredSaver); ok && anchored {
		err = as.SaveAt(ctx, st, at)
	} else {
		err = s.saver.Save(ctx, st)
	}
	if err != nil {
		slog.Error("final save failed", "error", err)
		return
	}
	slog.Info("final save complete", "tick", st.TickCount)
}
