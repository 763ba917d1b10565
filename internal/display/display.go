// Package display turns engine reports into presentation calls. The engine
// never talks to a Display directly; Adapter sits in between.
package display

import (
	"time"

	"github.com/talgya/stonetick/internal/effects"
	"github.com/talgya/stonetick/internal/engine"
)

// Display is the presentation surface.
type Display interface {
	SetTickCount(n uint64)
	SetRandomReading(v float64, band effects.Band)
	SetRecentEvents(events []string)
	SetCountdown(remaining time.Duration)
	SetResourceBalances(balances map[string]uint64)
	ShowProgress(p engine.Progress)
	HideProgress()
	ShowSummary(text string, d time.Duration)
}

// Adapter implements engine.Observer and engine.ProgressReporter.
type Adapter struct {
	d Display
}

// NewAdapter wraps d.
func NewAdapter(d Display) *Adapter {
	return &Adapter{d: d}
}

// Show pushes a full state, used once at startup before any tick.
func (a *Adapter) Show(st *engine.GameState) {
	a.d.SetTickCount(st.TickCount)
	a.d.SetRecentEvents(st.RecentEvents)
	a.d.SetResourceBalances(st.Resources)
}

// TickProcessed implements engine.Observer.
func (a *Adapter) TickProcessed(rep engine.TickReport) {
	a.d.SetTickCount(rep.State.TickCount)
	a.d.SetRandomReading(rep.Outcome.Random, rep.Outcome.Band)
	a.d.SetRecentEvents(rep.State.RecentEvents)
	a.d.SetResourceBalances(rep.State.Resources)
}

// Countdown implements engine.Observer.
func (a *Adapter) Countdown(remaining time.Duration) {
	a.d.SetCountdown(remaining)
}

// ShowProgress implements engine.ProgressReporter.
func (a *Adapter) ShowProgress(p engine.Progress) { a.d.ShowProgress(p) }

// HideProgress implements engine.ProgressReporter.
func (a *Adapter) HideProgress() { a.d.HideProgress() }

// ShowSummary implements engine.ProgressReporter.
func (a *Adapter) ShowSummary(text string, d time.Duration) { a.d.ShowSummary(text, d) }
