package engine

import (
	"github.com/talgya/stonetick/internal/effects"
	"github.com/talgya/stonetick/internal/entropy"
)

// Step advances st by exactly one logical tick. Live ticks and replayed
// ticks both go through here; nothing else mutates TickCount.
func Step(st *GameState, reg *effects.Registry, src entropy.Source, historyLimit int) effects.Outcome {
	st.TickCount++
	r := src.Float()

	out := reg.Apply(st.TickCount, r, st.Flags)
	st.Credit(out.Deltas)
	st.PushEvents(st.TickCount, out.Labels, historyLimit)
	return out
}
