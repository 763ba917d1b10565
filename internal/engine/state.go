package engine

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/stonetick/internal/effects"
)

// GameState is the complete mutable game state. Exactly one of Clock or
// Replay owns it at any time.
type GameState struct {
	GameID       string
	TickCount    uint64            // Monotonic, +1 per logical tick
	LastTick     time.Time         // Instant of the most recent processed tick
	RecentEvents []string          // Most recent first, bounded
	Resources    map[string]uint64 // Additive only
	Flags        map[string]bool   // Effect handler enable flags
}

// NewGameState creates a fresh game with a new ID and zeroed resources.
func NewGameState(now time.Time, mining bool) *GameState {
	return &GameState{
		GameID:   uuid.NewString(),
		LastTick: now,
		Resources: map[string]uint64{
			effects.Stone: 0,
			effects.Iron:  0,
		},
		Flags: map[string]bool{effects.MiningName: mining},
	}
}

// Normalize repairs a loaded state: nil maps become empty, the history is
// trimmed to limit, and a missing game ID is assigned.
func (s *GameState) Normalize(limit int) {
	if s.Resources == nil {
		s.Resources = make(map[string]uint64)
	}
	if s.Flags == nil {
		s.Flags = make(map[string]bool)
	}
	if limit >= 0 && len(s.RecentEvents) > limit {
		s.RecentEvents = s.RecentEvents[:limit]
	}
	if s.GameID == "" {
		s.GameID = uuid.NewString()
	}
}

// Clone returns a deep copy.
func (s *GameState) Clone() *GameState {
	c := *s
	c.RecentEvents = append([]string(nil), s.RecentEvents...)
	c.Resources = maps.Clone(s.Resources)
	c.Flags = maps.Clone(s.Flags)
	return &c
}

// Credit adds deltas to the resource balances.
func (s *GameState) Credit(d effects.Deltas) {
	if s.Resources == nil {
		s.Resources = make(map[string]uint64, len(d))
	}
	for k, v := range d {
		s.Resources[k] += v
	}
}

// PushEvents prepends each label in order, so the last label ends up first,
// then truncates the history to limit entries.
func (s *GameState) PushEvents(tick uint64, labels []string, limit int) {
	if len(labels) == 0 {
		return
	}
	fresh := make([]string, 0, len(labels)+len(s.RecentEvents))
	for i := len(labels) - 1; i >= 0; i-- {
		fresh = append(fresh, fmt.Sprintf("T%d: %s", tick, labels[i]))
	}
	fresh = append(fresh, s.RecentEvents...)
	if len(fresh) > limit {
		fresh = fresh[:limit]
	}
	s.RecentEvents = fresh
}
