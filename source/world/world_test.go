package world

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario test from §8(3): ball approaching the left paddle at 60Hz should
// bounce with vx>0, vy>0, and total speed preserved to within 1e-9.
func TestPaddleHitReflection(t *testing.T) {
	config := DefaultConfig()
	w := New(config)

	halfPaddle := config.PaddleHeight / 2
	leftPaddleX := config.PaddleXOffset + config.PaddleWidth/2

	s := w.Snapshot()
	s.BallX = leftPaddleX + 0.1
	s.BallY = s.LeftPaddleY + halfPaddle/2
	s.BallVX = -100
	s.BallVY = 0
	w.state = s

	result := w.Step(1.0 / 60.0)

	require.Greater(t, result.BallVX, 0.0)
	require.Greater(t, result.BallVY, 0.0)
	speedSq := result.BallVX*result.BallVX + result.BallVY*result.BallVY
	require.InDelta(t, config.BallSpeed*config.BallSpeed, speedSq, 1e-9)
}

func TestStepIsPureGivenSameInputs(t *testing.T) {
	config := DefaultConfig()
	a := New(config)
	b := New(config)

	a.SetPlayerInput(Left, 1)
	b.SetPlayerInput(Left, 1)
	a.SetPlayerInput(Right, -1)
	b.SetPlayerInput(Right, -1)

	for i := 0; i < 120; i++ {
		sa := a.Step(1.0 / 60.0)
		sb := b.Step(1.0 / 60.0)
		require.Equal(t, sa, sb)
	}
}

func TestTickIncrementsByOne(t *testing.T) {
	w := New(DefaultConfig())
	var last uint64
	for i := 0; i < 10; i++ {
		s := w.Step(1.0 / 60.0)
		require.Equal(t, last+1, s.Tick)
		last = s.Tick
	}
}

func TestBallStaysWithinVerticalBounds(t *testing.T) {
	config := DefaultConfig()
	w := New(config)
	w.SetPlayerInput(Left, 1)
	w.SetPlayerInput(Right, -1)
	for i := 0; i < 1000; i++ {
		s := w.Step(1.0 / 60.0)
		require.GreaterOrEqual(t, s.BallY, config.BallRadius-1e-9)
		require.LessOrEqual(t, s.BallY, config.Height-config.BallRadius+1e-9)
	}
}

func TestScoringRecentersAndServesTowardConcedingSide(t *testing.T) {
	config := DefaultConfig()
	w := New(config)
	s := w.Snapshot()
	s.BallX = -config.BallRadius - 1
	s.BallVX = -500
	w.state = s

	result := w.Step(1.0 / 60.0)

	require.Equal(t, uint32(1), result.RightScore)
	require.InDelta(t, config.Width/2, result.BallX, 1e-9)
	require.InDelta(t, config.Height/2, result.BallY, 1e-9)
	require.Equal(t, -config.BallSpeed, result.BallVX)
	require.Equal(t, 0.0, result.BallVY)
}

func TestPaddleClampedToArena(t *testing.T) {
	config := DefaultConfig()
	w := New(config)
	w.SetPlayerInput(Left, -1)
	for i := 0; i < 1000; i++ {
		w.Step(1.0 / 60.0)
	}
	s := w.Snapshot()
	require.InDelta(t, config.PaddleHeight/2, s.LeftPaddleY, 1e-9)
}

func TestDirectionInputClampedToUnitRange(t *testing.T) {
	require.Equal(t, int32(1), clampDirection(42))
	require.Equal(t, int32(-1), clampDirection(-42))
	require.Equal(t, int32(0), clampDirection(0))
}
