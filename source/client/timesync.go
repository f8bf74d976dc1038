package client

import "time"

// DefaultSmoothing is the EMA weight applied to each new offset sample.
const DefaultSmoothing = 0.1

// DefaultMaxSlew bounds how fast the smoothed offset may move toward the
// raw offset, expressed as offset-seconds moved per second of local time.
const DefaultMaxSlew = 0.5

// TimeSync folds server/local tick offsets into a raw and a smoothed
// exponential moving average, producing a monotonic target clock the
// predictor can schedule against without jumping on every sample.
type TimeSync struct {
	smoothing float64
	maxSlew   float64

	hasSample    bool
	rawOffset    float64
	smoothOffset float64
	lastLocal    time.Time
}

// NewTimeSync constructs a synchronizer with the given EMA weight and slew cap.
func NewTimeSync(smoothing, maxSlew float64) *TimeSync {
	return &TimeSync{smoothing: smoothing, maxSlew: maxSlew}
}

// Observe folds a (localTick, serverTick) pair into the raw and smoothed
// offset EMAs. Ticks are converted to a float64 difference by the caller's
// chosen unit (seconds, for the target/Target contract below).
func (ts *TimeSync) Observe(localTick, serverTick float64) {
	sample := serverTick - localTick
	if !ts.hasSample {
		ts.rawOffset = sample
		ts.smoothOffset = sample
		ts.hasSample = true
		return
	}
	ts.rawOffset = ts.smoothing*sample + (1-ts.smoothing)*ts.rawOffset
	ts.smoothOffset = ts.smoothing*sample + (1-ts.smoothing)*ts.smoothOffset
}

// Target returns localNow shifted by the smoothed offset, slewing the
// smoothed offset toward the raw offset by at most maxSlew*deltaLocal per
// call. Output is monotonic whenever localNow advances monotonically.
func (ts *TimeSync) Target(localNow time.Time) time.Time {
	if !ts.hasSample {
		return localNow
	}
	if !ts.lastLocal.IsZero() {
		deltaLocal := localNow.Sub(ts.lastLocal).Seconds()
		if deltaLocal < 0 {
			deltaLocal = 0
		}
		maxStep := ts.maxSlew * deltaLocal
		diff := ts.rawOffset - ts.smoothOffset
		if diff > maxStep {
			diff = maxStep
		} else if diff < -maxStep {
			diff = -maxStep
		}
		ts.smoothOffset += diff
	}
	ts.lastLocal = localNow
	return localNow.Add(time.Duration(ts.smoothOffset * float64(time.Second)))
}
