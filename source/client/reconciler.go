package client

import (
	"math"

	"pongnet/source/world"
)

// DefaultHistorySize bounds the reconciler's predicted-state deque (§3).
const DefaultHistorySize = 120

// DefaultEpsilon is the position-error threshold past which a correction is
// reported (§4.6).
const DefaultEpsilon = 0.5

// ReconcileResult reports the outcome of comparing a predicted state to an
// authoritative one of the same tick. Per design note (c), the reconciler
// never re-simulates — rollback is the caller's responsibility.
type ReconcileResult struct {
	Found         bool
	PositionError float64
	CorrectedTicks int
}

// Reconciler owns a bounded, tick-ordered history of predicted states and
// compares them against authoritative snapshots of the same tick.
type Reconciler struct {
	historySize int
	epsilon     float64
	history     []world.State // ordered oldest-first by tick
}

// NewReconciler constructs a reconciler with the given history bound and
// drift threshold.
func NewReconciler(historySize int, epsilon float64) *Reconciler {
	return &Reconciler{historySize: historySize, epsilon: epsilon}
}

// RecordPrediction appends a predicted state, evicting the oldest entry
// once the history exceeds its bound.
func (r *Reconciler) RecordPrediction(state world.State) {
	r.history = append(r.history, state)
	if len(r.history) > r.historySize {
		r.history = r.history[len(r.history)-r.historySize:]
	}
}

// Len reports how many predictions the reconciler currently holds.
func (r *Reconciler) Len() int {
	return len(r.history)
}

// Reconcile compares authoritative against the predicted state recorded for
// the same tick. If no prediction at that tick exists, anything older is
// pruned and a not-found result is returned. Otherwise the position error
// is the worst of the ball's Euclidean drift and either paddle's Y drift;
// if it exceeds epsilon, CorrectedTicks counts the matched prediction and
// everything recorded after it. The history is trimmed through the matched
// index either way.
func (r *Reconciler) Reconcile(authoritative world.State) ReconcileResult {
	index := -1
	for i, s := range r.history {
		if s.Tick == authoritative.Tick {
			index = i
			break
		}
	}
	if index == -1 {
		r.pruneOlderThan(authoritative.Tick)
		return ReconcileResult{}
	}

	predicted := r.history[index]
	positionError := positionDrift(predicted, authoritative)

	result := ReconcileResult{Found: true, PositionError: positionError}
	if positionError > r.epsilon {
		result.CorrectedTicks = len(r.history) - index
	}

	r.history = r.history[index+1:]
	return result
}

func (r *Reconciler) pruneOlderThan(tick uint64) {
	i := 0
	for i < len(r.history) && r.history[i].Tick < tick {
		i++
	}
	r.history = r.history[i:]
}

func positionDrift(predicted, authoritative world.State) float64 {
	ballError := math.Hypot(authoritative.BallX-predicted.BallX, authoritative.BallY-predicted.BallY)
	leftError := math.Abs(authoritative.LeftPaddleY - predicted.LeftPaddleY)
	rightError := math.Abs(authoritative.RightPaddleY - predicted.RightPaddleY)

	return math.Max(ballError, math.Max(leftError, rightError))
}
