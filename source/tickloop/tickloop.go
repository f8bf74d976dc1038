// Package tickloop drives a handler at a fixed rate, the way the reference
// engine's core::GameLoop does: a dedicated goroutine sleeping toward a
// moving target time, resynchronizing instead of catching up when it falls
// more than one period behind.
package tickloop

import (
	"sync"
	"time"
)

const minTPS = 1.0

// Handler is invoked once per tick with the tick counter and the observed
// delta time, bounded below by the configured period.
type Handler func(tick uint64, dtSeconds float64)

// Loop is a fixed-rate driver. The zero value is not usable; construct with
// New.
type Loop struct {
	period time.Duration

	mu      sync.Mutex
	handler Handler

	running chan struct{}
	stopped chan struct{}
}

// New creates a loop targeting targetTPS ticks per second, floored at 1 TPS.
func New(targetTPS float64) *Loop {
	if targetTPS < minTPS {
		targetTPS = minTPS
	}
	return &Loop{
		period: time.Duration(float64(time.Second) / targetTPS),
	}
}

// Start begins the tick goroutine; idempotent after a successful start.
func (l *Loop) Start(handler Handler) {
	l.mu.Lock()
	if l.running != nil {
		l.mu.Unlock()
		return
	}
	l.handler = handler
	l.running = make(chan struct{})
	l.stopped = make(chan struct{})
	running := l.running
	stopped := l.stopped
	l.mu.Unlock()

	go l.run(running, stopped)
}

// Stop signals the worker and joins it; callers must tolerate up to one
// tick period of residual work.
func (l *Loop) Stop() {
	l.mu.Lock()
	running := l.running
	stopped := l.stopped
	l.running = nil
	l.mu.Unlock()

	if running == nil {
		return
	}
	close(running)
	<-stopped
}

func (l *Loop) run(running, stopped chan struct{}) {
	defer close(stopped)

	nextTick := time.Now()
	lastTick := nextTick
	var tickCounter uint64

	for {
		select {
		case <-running:
			return
		default:
		}

		now := time.Now()
		if now.Before(nextTick) {
			timer := time.NewTimer(nextTick.Sub(now))
			select {
			case <-running:
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		dtSeconds := now.Sub(lastTick).Seconds()
		if periodSeconds := l.period.Seconds(); dtSeconds < periodSeconds {
			dtSeconds = periodSeconds
		}

		l.mu.Lock()
		handler := l.handler
		l.mu.Unlock()
		if handler != nil {
			handler(tickCounter, dtSeconds)
		}

		lastTick = now
		nextTick = nextTick.Add(l.period)
		if now.Sub(nextTick) > l.period {
			nextTick = now.Add(l.period)
		}
		tickCounter++
	}
}
