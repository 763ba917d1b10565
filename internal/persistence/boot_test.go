package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/stonetick/internal/effects"
	"github.com/talgya/stonetick/internal/engine"
	"github.com/talgya/stonetick/internal/entropy"
	"github.com/talgya/stonetick/internal/sched"
)

type progressLog struct {
	shown []engine.Progress
}

func (p *progressLog) ShowProgress(pr engine.Progress) { p.shown = append(p.shown, pr) }

func (p *progressLog) HideProgress() {}

func (p *progressLog) ShowSummary(string, time.Duration) {}

func bootSession(t *testing.T, gw *Gateway, clock *sched.Manual) (*engine.Session, *progressLog) {
	t.Helper()
	reg, err := effects.NewRegistry(effects.NewMining())
	require.NoError(t, err)
	rep := &progressLog{}
	sess := engine.NewSession(engine.DefaultSettings(), clock, reg, entropy.NewSequence(0.5), gw, nil, rep)
	sess.Boot(context.Background(), gw, func() *engine.GameState {
		return engine.NewGameState(clock.Now(), true)
	})
	return sess, rep
}

func TestBoot_UnusableStorageStartsFresh(t *testing.T) {
	ctx := context.Background()
	cases := map[string]struct {
		raw       string
		failReads bool
	}{
		"absent":     {},
		"corrupt":    {raw: `{"tickCount":`},
		"missing":    {raw: `{"tickCount":9}`},
		"unreadable": {raw: `{"tickCount":9,"lastSaveTimestamp":1,"schemaVersion":"1.0.0"}`, failReads: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			store := NewMemoryStorage()
			if tc.raw != "" {
				require.NoError(t, store.Set(ctx, testKey, tc.raw))
			}
			store.FailReads = tc.failReads
			gw, clock := newTestGateway(store)

			sess, rep := bootSession(t, gw, clock)
			st := sess.Current()
			require.NotNil(t, st)
			assert.Equal(t, uint64(0), st.TickCount)
			assert.Equal(t, uint64(0), st.Resources[effects.Stone])
			assert.Empty(t, st.RecentEvents)
			assert.Empty(t, rep.shown)
			assert.True(t, sess.Clock.Running())
			assert.Equal(t, engine.PhaseLive, sess.Replay.Phase())
		})
	}
}

func TestBoot_ReplaysOfflineTimeFromSave(t *testing.T) {
	interval := engine.DefaultSettings().Interval
	gw, clock := newTestGateway(NewMemoryStorage())

	first, _ := bootSession(t, gw, clock)
	clock.Advance(7 * interval)
	first.Shutdown(context.Background())
	require.Equal(t, uint64(7), first.Current().TickCount)

	clock.Set(clock.Now().Add(12 * interval))
	second, rep := bootSession(t, gw, clock)
	clock.Advance(time.Second)

	assert.Equal(t, uint64(19), second.Current().TickCount)
	require.NotEmpty(t, rep.shown)
	assert.Equal(t, 12, rep.shown[len(rep.shown)-1].Total)
	assert.True(t, second.Clock.Running())
}

func TestBoot_PartialIntervalSurvivesRestart(t *testing.T) {
	interval := engine.DefaultSettings().Interval
	gw, clock := newTestGateway(NewMemoryStorage())

	first, _ := bootSession(t, gw, clock)
	clock.Advance(2*interval + interval/2)
	first.Shutdown(context.Background())
	require.Equal(t, uint64(2), first.Current().TickCount)

	clock.Set(epoch.Add(5 * interval))
	second, _ := bootSession(t, gw, clock)
	clock.Advance(time.Second)

	assert.Equal(t, uint64(5), second.Current().TickCount)
}
