package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeSyncFirstObservationSnapsToRawOffset(t *testing.T) {
	ts := NewTimeSync(DefaultSmoothing, DefaultMaxSlew)
	ts.Observe(0, 5)

	now := time.Now()
	target := ts.Target(now)

	require.InDelta(t, 5.0, target.Sub(now).Seconds(), 1e-9)
}

func TestTimeSyncSlewIsBoundedPerCall(t *testing.T) {
	ts := NewTimeSync(DefaultSmoothing, 1.0) // 1 offset-second per local-second
	ts.Observe(0, 0)

	base := time.Now()
	ts.Target(base) // establish lastLocal with zero offset

	// Observe moves both EMAs alike, so set the raw offset directly to put it
	// further from the smoothed offset than one slew step can cover.
	ts.rawOffset = 10
	target := ts.Target(base.Add(200 * time.Millisecond))

	// at most maxSlew(1.0) * 0.2s = 0.2s of movement toward the raw offset
	require.InDelta(t, 0.2, target.Sub(base.Add(200*time.Millisecond)).Seconds(), 1e-9)
}

// Observe folds each sample into both EMAs, not just the raw offset — two
// Observe calls with no intervening Target must move smoothOffset too,
// matching original_source's time_sync.cpp updating offset_estimate_ and
// smoothed_offset_ with the same formula on every sample.
func TestObserveUpdatesSmoothOffsetEvenWithoutTarget(t *testing.T) {
	ts := NewTimeSync(DefaultSmoothing, DefaultMaxSlew)
	ts.Observe(0, 0)
	ts.Observe(0, 10)

	want := DefaultSmoothing*10.0 + (1-DefaultSmoothing)*0.0
	require.InDelta(t, want, ts.smoothOffset, 1e-9)
}

func TestTimeSyncMonotonicUnderMonotonicInput(t *testing.T) {
	ts := NewTimeSync(DefaultSmoothing, DefaultMaxSlew)
	ts.Observe(0, 3)

	base := time.Now()
	prev := ts.Target(base)
	for i := 1; i <= 5; i++ {
		next := ts.Target(base.Add(time.Duration(i) * 100 * time.Millisecond))
		require.True(t, next.After(prev) || next.Equal(prev))
		prev = next
	}
}
