package snapshot

import "pongnet/source/world"

// Decoder applies keyframes and deltas, keeping its own history so it can
// resolve a delta's base_tick.
type Decoder struct {
	historySize int
	history     []world.State
}

// NewDecoder constructs a decoder with the given history bound.
func NewDecoder(historySize int) *Decoder {
	return &Decoder{historySize: historySize}
}

// Apply decodes snapshot into a state, storing the result so future deltas
// against this tick can be resolved. Returns ErrMissingBaseState if a delta
// references a base_tick this decoder never saw.
func (d *Decoder) Apply(snapshot Encoded) (world.State, error) {
	var state world.State
	if snapshot.IsKeyframe {
		state = DecodeKeyframe(snapshot.Payload, snapshot.Tick)
	} else {
		base, ok := d.findState(snapshot.BaseTick)
		if !ok {
			return world.State{}, ErrMissingBaseState
		}
		state = ApplyDelta(base, snapshot.Payload, snapshot.Tick)
	}

	d.storeState(state)
	return state, nil
}

func (d *Decoder) findState(tick uint64) (world.State, bool) {
	for _, s := range d.history {
		if s.Tick == tick {
			return s, true
		}
	}
	return world.State{}, false
}

func (d *Decoder) storeState(state world.State) {
	d.history = append(d.history, state)
	if len(d.history) > d.historySize {
		d.history = d.history[len(d.history)-d.historySize:]
	}
}
