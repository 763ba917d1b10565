// Package effects maps a tick number and its random draw to reward deltas
// and event labels. Output depends only on its inputs, so a replayed tick
// and a live tick with the same draw are indistinguishable.
package effects

import (
	"fmt"
	"sort"
)

// Rarity thresholds. Upper bounds are exclusive.
const (
	RareThreshold     = 0.10
	UncommonThreshold = 0.30
	CommonThreshold   = 0.60
)

// Milestone intervals, in ticks.
const (
	SpecialEvery   = 5
	MilestoneEvery = 10
)

// Band is a rarity band.
type Band uint8

const (
	BandNormal Band = iota
	BandCommon
	BandUncommon
	BandRare
)

// Classify returns the band for a draw in [0, 1).
func Classify(r float64) Band {
	switch {
	case r < RareThreshold:
		return BandRare
	case r < UncommonThreshold:
		return BandUncommon
	case r < CommonThreshold:
		return BandCommon
	default:
		return BandNormal
	}
}

func (b Band) String() string {
	switch b {
	case BandRare:
		return "rare"
	case BandUncommon:
		return "uncommon"
	case BandCommon:
		return "common"
	default:
		return "normal"
	}
}

// EventLabel is the history entry for the band. Normal ticks leave none.
func (b Band) EventLabel() string {
	switch b {
	case BandRare:
		return "Rare event occurred!"
	case BandUncommon:
		return "Uncommon event!"
	case BandCommon:
		return "Common event"
	default:
		return ""
	}
}

// Milestone labels.
const (
	LabelSpecial   = "Every 5th tick special!"
	LabelMilestone = "10th tick milestone!"
)

// Deltas are resource grants keyed by resource kind.
type Deltas map[string]uint64

// Add sums o into d.
func (d Deltas) Add(o Deltas) {
	for k, v := range o {
		d[k] += v
	}
}

// Outcome is the result of one tick.
type Outcome struct {
	Tick   uint64
	Random float64
	Band   Band
	Deltas Deltas
	Labels []string // oldest first, in the order they occurred
}

// Handler is a per-tick effect. Apply must be a pure function of its inputs.
type Handler interface {
	Name() string
	Apply(tick uint64, r float64) Deltas
}

// Registry holds the handlers invoked on every tick.
type Registry struct {
	handlers []Handler
	names    map[string]struct{}
}

// NewRegistry creates a registry with the given handlers.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	reg := &Registry{names: make(map[string]struct{})}
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds a handler. Names must be unique.
func (r *Registry) Register(h Handler) error {
	if _, dup := r.names[h.Name()]; dup {
		return fmt.Errorf("effect handler %q already registered", h.Name())
	}
	r.names[h.Name()] = struct{}{}
	r.handlers = append(r.handlers, h)
	return nil
}

// Handlers returns the registered handler names, sorted.
func (r *Registry) Handlers() []string {
	out := make([]string, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h.Name())
	}
	sort.Strings(out)
	return out
}

// Apply computes the outcome of tick with draw rv. flags enables handlers
// by name; a handler missing from flags is disabled.
func (r *Registry) Apply(tick uint64, rv float64, flags map[string]bool) Outcome {
	band := Classify(rv)
	out := Outcome{
		Tick:   tick,
		Random: rv,
		Band:   band,
		Deltas: Deltas{},
	}

	if l := band.EventLabel(); l != "" {
		out.Labels = append(out.Labels, l)
	}
	if tick%SpecialEvery == 0 {
		out.Labels = append(out.Labels, LabelSpecial)
	}
	if tick%MilestoneEvery == 0 {
		out.Labels = append(out.Labels, LabelMilestone)
	}

	for _, h := range r.handlers {
		if !flags[h.Name()] {
			continue
		}
		out.Deltas.Add(h.Apply(tick, rv))
	}
	return out
}
