// Package client implements C6, the Client Sync collaborators used by a
// client talking to the netcode server: a local predictor that mirrors the
// arena's physics, a reconciler that compares predictions against
// authoritative state, and a soft time synchronizer. Grounded on the
// reference engine's sync::Predictor, sync::Reconciler, and
// sync::TimeSync. None of the three holds a lock.
package client

import (
	"github.com/pkg/errors"

	"pongnet/source/world"
)

// ErrPredictionBeforeReset is returned by Predict when Reset has never been
// called — a programmer error per §7 (PredictionBeforeReset): the caller
// must seed the predictor from an authoritative snapshot first.
var ErrPredictionBeforeReset = errors.New("client: predict called before reset")

// Predictor holds a local copy of the world config and runs the same
// deterministic physics step as the authoritative simulation, advancing a
// client-side guess of the world state between server snapshots.
type Predictor struct {
	config world.Config
	state  world.State
	seeded bool
}

// NewPredictor constructs a predictor for the given arena geometry.
func NewPredictor(config world.Config) *Predictor {
	return &Predictor{config: config}
}

// Reset seeds the predictor from an authoritative snapshot, discarding any
// prior predicted state.
func (p *Predictor) Reset(state world.State) {
	p.state = state
	p.seeded = true
}

// Predict overrides the current directions, advances physics by dt using
// the same step the server runs, stamps tick, and returns the new state.
// It fails with ErrPredictionBeforeReset if Reset was never called.
func (p *Predictor) Predict(tick uint64, dtSeconds float64, leftDir, rightDir int32) (world.State, error) {
	if !p.seeded {
		return world.State{}, ErrPredictionBeforeReset
	}
	p.state.LeftDirection = clampDirection(leftDir)
	p.state.RightDirection = clampDirection(rightDir)
	p.state = world.Advance(p.state, p.config, dtSeconds)
	p.state.Tick = tick
	return p.state, nil
}

// Current returns the predictor's current state without advancing it.
func (p *Predictor) Current() world.State {
	return p.state
}

func clampDirection(direction int32) int32 {
	if direction > 0 {
		return 1
	}
	if direction < 0 {
		return -1
	}
	return 0
}
