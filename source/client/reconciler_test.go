package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pongnet/source/world"
)

func predictedStates(startTick uint64, n int) []world.State {
	states := make([]world.State, n)
	for i := 0; i < n; i++ {
		states[i] = world.State{Tick: startTick + uint64(i), BallX: 400, BallY: 240}
	}
	return states
}

// Scenario test from §8(4): exact match at tick 5 reports zero error and
// zero corrected ticks, with the history trimmed to what remains after it.
func TestReconcileBelowEpsilon(t *testing.T) {
	r := NewReconciler(DefaultHistorySize, DefaultEpsilon)
	for _, s := range predictedStates(1, 10) {
		r.RecordPrediction(s)
	}

	authoritative := world.State{Tick: 5, BallX: 400, BallY: 240}
	result := r.Reconcile(authoritative)

	require.True(t, result.Found)
	require.Equal(t, 0.0, result.PositionError)
	require.Equal(t, 0, result.CorrectedTicks)
	require.Equal(t, 5, r.Len())
}

// Scenario test from §8(5): a 1.0-unit ball offset at tick 5 exceeds
// epsilon=0.5 and reports correction back through the matched tick.
func TestReconcileAboveEpsilon(t *testing.T) {
	r := NewReconciler(DefaultHistorySize, DefaultEpsilon)
	for _, s := range predictedStates(1, 10) {
		r.RecordPrediction(s)
	}

	authoritative := world.State{Tick: 5, BallX: 401, BallY: 240}
	result := r.Reconcile(authoritative)

	require.True(t, result.Found)
	require.InDelta(t, 1.0, result.PositionError, 1e-9)
	require.Equal(t, 6, result.CorrectedTicks)
}

func TestReconcileMissingTickPrunesOlder(t *testing.T) {
	r := NewReconciler(DefaultHistorySize, DefaultEpsilon)
	for _, s := range predictedStates(1, 5) {
		r.RecordPrediction(s)
	}

	result := r.Reconcile(world.State{Tick: 10})

	require.False(t, result.Found)
	require.Equal(t, 0, r.Len())
}

func TestRecordPredictionEvictsOldest(t *testing.T) {
	r := NewReconciler(3, DefaultEpsilon)
	for _, s := range predictedStates(1, 5) {
		r.RecordPrediction(s)
	}
	require.Equal(t, 3, r.Len())
}
