package effects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Boundaries(t *testing.T) {
	cases := []struct {
		r    float64
		want Band
	}{
		{0, BandRare},
		{0.0999, BandRare},
		{0.10, BandUncommon},
		{0.2999, BandUncommon},
		{0.30, BandCommon},
		{0.5999, BandCommon},
		{0.60, BandNormal},
		{0.6999, BandNormal},
		{0.9999, BandNormal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.r), "r=%v", tc.r)
	}
}

// 0.6999 sits above the 0.60 common bound, so it is normal; anything in
// [0.30, 0.60) is common.
func TestClassify_CommonRange(t *testing.T) {
	assert.Equal(t, BandCommon, Classify(0.30))
	assert.Equal(t, BandCommon, Classify(0.45))
	assert.Equal(t, "common", Classify(0.59).String())
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(NewMining())
	require.NoError(t, err)
	return reg
}

func TestApply_Deterministic(t *testing.T) {
	reg := newTestRegistry(t)
	flags := map[string]bool{MiningName: true}

	for tick := uint64(1); tick <= 40; tick++ {
		for _, r := range []float64{0.01, 0.15, 0.42, 0.77} {
			a := reg.Apply(tick, r, flags)
			b := newTestRegistry(t).Apply(tick, r, flags)
			assert.Equal(t, a, b)
		}
	}
}

func TestApply_Labels(t *testing.T) {
	reg := newTestRegistry(t)

	out := reg.Apply(3, 0.05, nil)
	assert.Equal(t, []string{"Rare event occurred!"}, out.Labels)

	out = reg.Apply(5, 0.9, nil)
	assert.Equal(t, []string{LabelSpecial}, out.Labels)

	out = reg.Apply(10, 0.2, nil)
	assert.Equal(t, []string{"Uncommon event!", LabelSpecial, LabelMilestone}, out.Labels)

	out = reg.Apply(7, 0.8, nil)
	assert.Empty(t, out.Labels)
	assert.Empty(t, out.Deltas)
}

func TestMining_RewardTable(t *testing.T) {
	reg := newTestRegistry(t)
	on := map[string]bool{MiningName: true}

	assert.Equal(t, Deltas{Stone: 5, Iron: 3}, reg.Apply(1, 0.05, on).Deltas)
	assert.Equal(t, Deltas{Stone: 3, Iron: 1}, reg.Apply(1, 0.2, on).Deltas)
	assert.Equal(t, Deltas{Stone: 2}, reg.Apply(1, 0.5, on).Deltas)
	assert.Equal(t, Deltas{Stone: 1}, reg.Apply(1, 0.9, on).Deltas)
}

func TestMining_MilestoneStacksOnBand(t *testing.T) {
	reg := newTestRegistry(t)
	on := map[string]bool{MiningName: true}

	assert.Equal(t, Deltas{Stone: 7, Iron: 4}, reg.Apply(20, 0.05, on).Deltas)
	assert.Equal(t, Deltas{Stone: 3, Iron: 1}, reg.Apply(10, 0.9, on).Deltas)
	// Every 5th tick is a label only.
	assert.Equal(t, Deltas{Stone: 1}, reg.Apply(15, 0.9, on).Deltas)
}

type flatHandler struct {
	name string
	kind string
}

func (h flatHandler) Name() string { return h.name }

func (h flatHandler) Apply(uint64, float64) Deltas { return Deltas{h.kind: 1} }

func TestRegistry_DisabledHandlerIsolated(t *testing.T) {
	reg, err := NewRegistry(NewMining(), flatHandler{name: "wood", kind: "wood"})
	require.NoError(t, err)

	both := reg.Apply(4, 0.5, map[string]bool{MiningName: true, "wood": true})
	woodOnly := reg.Apply(4, 0.5, map[string]bool{"wood": true})
	miningOnly := reg.Apply(4, 0.5, map[string]bool{MiningName: true})

	assert.Equal(t, Deltas{Stone: 2, "wood": 1}, both.Deltas)
	assert.Equal(t, Deltas{"wood": 1}, woodOnly.Deltas)
	assert.Equal(t, Deltas{Stone: 2}, miningOnly.Deltas)
	assert.Equal(t, both.Labels, woodOnly.Labels)
}

func TestRegistry_RejectsDuplicate(t *testing.T) {
	reg := newTestRegistry(t)
	err := reg.Register(NewMining())
	assert.Error(t, err)
	assert.Equal(t, []string{MiningName}, reg.Handlers())
}
