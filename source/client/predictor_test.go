package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pongnet/source/world"
)

func TestPredictBeforeResetFails(t *testing.T) {
	p := NewPredictor(world.DefaultConfig())
	_, err := p.Predict(1, 1.0/60.0, 0, 0)
	require.ErrorIs(t, err, ErrPredictionBeforeReset)
}

func TestPredictMatchesWorldStep(t *testing.T) {
	config := world.DefaultConfig()
	w := world.New(config)
	w.SetPlayerInput(world.Left, 1)

	p := NewPredictor(config)
	p.Reset(w.Snapshot())

	wantState := w.Step(1.0 / 60.0)
	gotState, err := p.Predict(wantState.Tick, 1.0/60.0, 1, 0)

	require.NoError(t, err)
	require.Equal(t, wantState, gotState)
}
