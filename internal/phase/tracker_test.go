package phase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelvm/kestrel/internal/callbacks"
)

func TestTrackerFullLifecycle(t *testing.T) {
	tr := NewTracker()

	_, ok := tr.Current()
	require.False(t, ok, "no phase should be reached before the first Advance")

	for _, p := range []callbacks.RuntimePhase{
		callbacks.PhaseInitialAgents,
		callbacks.PhaseStart,
		callbacks.PhaseInit,
		callbacks.PhaseDeath,
	} {
		require.NoError(t, tr.Advance(p))
		cur, ok := tr.Current()
		require.True(t, ok)
		require.Equal(t, p, cur)
	}
}

func TestTrackerRejectsWrongFirstPhase(t *testing.T) {
	tr := NewTracker()
	err := tr.Advance(callbacks.PhaseStart)
	require.ErrorIs(t, err, ErrOutOfOrder)
}

func TestTrackerRejectsSkippedPhase(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Advance(callbacks.PhaseInitialAgents))

	err := tr.Advance(callbacks.PhaseInit)
	require.ErrorIs(t, err, ErrOutOfOrder)

	// The failed transition must not have moved the tracker.
	cur, ok := tr.Current()
	require.True(t, ok)
	require.Equal(t, callbacks.PhaseInitialAgents, cur)
}

func TestTrackerRejectsRepeatedPhase(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Advance(callbacks.PhaseInitialAgents))
	require.ErrorIs(t, tr.Advance(callbacks.PhaseInitialAgents), ErrOutOfOrder)
}

func TestTrackerTerminalAtDeath(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Advance(callbacks.PhaseInitialAgents))
	require.NoError(t, tr.Advance(callbacks.PhaseStart))
	require.NoError(t, tr.Advance(callbacks.PhaseInit))
	require.NoError(t, tr.Advance(callbacks.PhaseDeath))

	require.ErrorIs(t, tr.Advance(callbacks.PhaseDeath), ErrTerminal)
}

// phaseSink records dispatched phases.
type phaseSink struct {
	phases []callbacks.RuntimePhase
}

func (s *phaseSink) NextRuntimePhase(p callbacks.RuntimePhase) {
	s.phases = append(s.phases, p)
}

func TestAnnounceDispatchesOnlyValidTransitions(t *testing.T) {
	d := callbacks.New()
	sink := &phaseSink{}
	d.AddRuntimePhaseCallback(sink)

	tr := NewTracker()
	require.NoError(t, tr.Announce(d, callbacks.PhaseInitialAgents))
	require.Error(t, tr.Announce(d, callbacks.PhaseInit))
	require.NoError(t, tr.Announce(d, callbacks.PhaseStart))

	want := []callbacks.RuntimePhase{callbacks.PhaseInitialAgents, callbacks.PhaseStart}
	require.Equal(t, want, sink.phases)
}
