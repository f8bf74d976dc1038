package snapshot

import "pongnet/source/world"

// DefaultKeyframeInterval and DefaultHistorySize mirror the constructor call
// in the reference pong server (pong_udp_server.cpp): keyframe_interval=20,
// history=256.
const (
	DefaultKeyframeInterval = 20
	DefaultHistorySize      = 256
)

// Encoded is one generator output: a snapshot ready for the wire, either a
// keyframe or a delta against BaseTick.
type Encoded struct {
	Tick       uint64
	IsKeyframe bool
	BaseTick   uint64
	Payload    []byte
}

// Generator emits keyframes on a cadence and deltas in between, keeping a
// sliding history to find the delta's base state; when that base has been
// evicted it emits a keyframe instead.
type Generator struct {
	keyframeInterval uint64
	historySize      int

	hasKeyframe      bool
	lastKeyframeTick uint64
	history          []world.State // ordered oldest-first, like the reference's deque
}

// NewGenerator constructs a generator with the given cadence and history bound.
func NewGenerator(keyframeInterval uint64, historySize int) *Generator {
	return &Generator{
		keyframeInterval: keyframeInterval,
		historySize:      historySize,
	}
}

// Encode emits a keyframe or delta for state per the cadence policy in §4.4.
func (g *Generator) Encode(state world.State) Encoded {
	shouldEmitKeyframe := !g.hasKeyframe ||
		state.Tick <= g.lastKeyframeTick ||
		state.Tick-g.lastKeyframeTick >= g.keyframeInterval

	if shouldEmitKeyframe {
		return g.encodeKeyframe(state)
	}

	base, ok := g.findState(g.lastKeyframeTick)
	if !ok {
		return g.encodeKeyframe(state)
	}

	encoded := Encoded{
		Tick:     state.Tick,
		BaseTick: g.lastKeyframeTick,
		Payload:  EncodeDelta(base, state),
	}

	g.storeState(state)
	g.pruneHistory(state.Tick)

	return encoded
}

func (g *Generator) encodeKeyframe(state world.State) Encoded {
	encoded := Encoded{
		Tick:       state.Tick,
		IsKeyframe: true,
		BaseTick:   state.Tick,
		Payload:    EncodeKeyframe(state),
	}

	g.storeState(state)
	g.lastKeyframeTick = state.Tick
	g.hasKeyframe = true
	g.pruneHistory(state.Tick)

	return encoded
}

func (g *Generator) findState(tick uint64) (world.State, bool) {
	for _, s := range g.history {
		if s.Tick == tick {
			return s, true
		}
	}
	return world.State{}, false
}

func (g *Generator) storeState(state world.State) {
	for i, s := range g.history {
		if s.Tick == state.Tick {
			g.history[i] = state
			return
		}
	}
	g.history = append(g.history, state)
	if len(g.history) > g.historySize {
		g.history = g.history[len(g.history)-g.historySize:]
	}
}

func (g *Generator) pruneHistory(tick uint64) {
	var minTick uint64
	span := uint64(g.historySize)
	if tick >= span {
		minTick = tick - span
	}
	i := 0
	for i < len(g.history) && g.history[i].Tick < minTick {
		i++
	}
	g.history = g.history[i:]
}
