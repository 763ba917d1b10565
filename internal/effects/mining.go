package effects

// Resource kinds.
const (
	Stone = "stone"
	Iron  = "iron"
)

// MiningName is the flag and handler name of the mining effect.
const MiningName = "mining"

// MiningRewards is the per-band reward table.
type MiningRewards struct {
	BaseStone      uint64
	CommonStone    uint64
	UncommonStone  uint64
	RareStone      uint64
	UncommonIron   uint64
	RareIron       uint64
	MilestoneStone uint64
	MilestoneIron  uint64
}

// DefaultMiningRewards returns the standard table.
func DefaultMiningRewards() MiningRewards {
	return MiningRewards{
		BaseStone:      1,
		CommonStone:    2,
		UncommonStone:  3,
		RareStone:      5,
		UncommonIron:   1,
		RareIron:       3,
		MilestoneStone: 2,
		MilestoneIron:  1,
	}
}

// Mining grants stone every tick and iron on uncommon and rare draws.
// Every MilestoneEvery ticks it adds a bonus on top of the band reward.
type Mining struct {
	Rewards MiningRewards
}

// NewMining creates the mining handler with the default table.
func NewMining() *Mining {
	return &Mining{Rewards: DefaultMiningRewards()}
}

// Name implements Handler.
func (m *Mining) Name() string { return MiningName }

// Apply implements Handler.
func (m *Mining) Apply(tick uint64, r float64) Deltas {
	rw := m.Rewards
	stone, iron := rw.BaseStone, uint64(0)

	switch Classify(r) {
	case BandRare:
		stone, iron = rw.RareStone, rw.RareIron
	case BandUncommon:
		stone, iron = rw.UncommonStone, rw.UncommonIron
	case BandCommon:
		stone = rw.CommonStone
	}

	if tick%MilestoneEvery == 0 {
		stone += rw.MilestoneStone
		iron += rw.MilestoneIron
	}

	d := Deltas{Stone: stone}
	if iron > 0 {
		d[Iron] = iron
	}
	return d
}
