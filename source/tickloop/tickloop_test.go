package tickloop

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopCallsHandlerAtApproximatelyTargetRate(t *testing.T) {
	loop := New(100) // 10ms period
	var ticks atomic.Uint64
	loop.Start(func(tick uint64, dt float64) {
		ticks.Add(1)
	})
	time.Sleep(250 * time.Millisecond)
	loop.Stop()

	got := ticks.Load()
	require.Greater(t, got, uint64(15))
	require.Less(t, got, uint64(35))
}

func TestLoopTicksIncreaseMonotonically(t *testing.T) {
	loop := New(200)
	var last uint64
	var mismatched atomic.Bool
	done := make(chan struct{})
	count := 0
	loop.Start(func(tick uint64, dt float64) {
		if tick != last {
			mismatched.Store(true)
		}
		last++
		count++
		if count >= 10 {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not reach 10 ticks in time")
	}
	loop.Stop()
	require.False(t, mismatched.Load())
}

func TestStopIsIdempotent(t *testing.T) {
	loop := New(50)
	loop.Start(func(tick uint64, dt float64) {})
	time.Sleep(20 * time.Millisecond)
	loop.Stop()
	loop.Stop() // must not block or panic
}

func TestStartIsIdempotentAfterSuccessfulStart(t *testing.T) {
	loop := New(50)
	var calls atomic.Uint64
	loop.Start(func(tick uint64, dt float64) { calls.Add(1) })
	loop.Start(func(tick uint64, dt float64) { calls.Add(1000) }) // no-op, handler unchanged
	time.Sleep(60 * time.Millisecond)
	loop.Stop()
	require.Less(t, calls.Load(), uint64(1000))
}
