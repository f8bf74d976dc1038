// Package server implements C5, the Netcode Server: it binds peers to
// Left/Right/Spectator roles, routes decoded input into the simulation,
// ack's received input reliably, broadcasts per-tick snapshots, and
// records metrics. Adapted from the teacher's UDP socket-binding and
// start/stop/update-loop shape in source/server/server.go, grounded in
// behavior on original_source's apps/pong_udp/pong_udp_server.{h,cpp}.
package server

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"pongnet/pkg/logger"
	"pongnet/pkg/transport"
	"pongnet/source/snapshot"
	"pongnet/source/tickloop"
	"pongnet/source/world"
)

// CheckpointIntervalTicks mirrors pong_udp_server.h's
// CHECKPOINT_INTERVAL_TICKS: how often CheckpointDue reports a tick as
// checkpoint-due, roughly once a second at 60 TPS.
const CheckpointIntervalTicks = 60

// PeerTimeout is how long a peer may go without sending input before the
// cleanup loop releases its role slot, mirroring the teacher's
// sessionCleanupLoop stale-session sweep.
const PeerTimeout = 10 * time.Second

// cleanupInterval is how often the cleanup loop sweeps for stale peers,
// matching the teacher's 5-second sessionCleanupLoop ticker.
const cleanupInterval = 5 * time.Second

// Config collects the server's runtime parameters; NewServer applies
// ConfigInvalid defaults (§7) rather than failing when values are out of
// range.
type Config struct {
	ListenAddr       string
	TargetTPS        float64
	KeyframeInterval uint64
	HistorySize      int
	WorldConfig      world.Config
}

// DefaultConfig returns the canonical paddle/ball example's parameters.
func DefaultConfig() Config {
	return Config{
		ListenAddr:       ":40000",
		TargetTPS:        60,
		KeyframeInterval: snapshot.DefaultKeyframeInterval,
		HistorySize:      snapshot.DefaultHistorySize,
		WorldConfig:      world.DefaultConfig(),
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.TargetTPS <= 0 {
		logger.Warn("server: ConfigInvalid target_tps=%v, falling back to 60", cfg.TargetTPS)
		cfg.TargetTPS = 60
	}
	if cfg.ListenAddr == "" {
		logger.Warn("server: ConfigInvalid empty listen address, falling back to :40000")
		cfg.ListenAddr = ":40000"
	}
	if cfg.KeyframeInterval == 0 {
		cfg.KeyframeInterval = snapshot.DefaultKeyframeInterval
	}
	if cfg.HistorySize == 0 {
		cfg.HistorySize = snapshot.DefaultHistorySize
	}
	return cfg
}

// ScoreHandler is invoked whenever a tick changes either score, letting an
// external collaborator (the gamemode package's broadcast hooks) announce
// it without the server depending on that package.
type ScoreHandler func(leftScore, rightScore uint32)

// ConnectHandler is invoked once a peer is assigned a role on first contact.
type ConnectHandler func(addr, role string)

// DisconnectHandler is invoked when the cleanup loop releases a stale
// peer's role slot.
type DisconnectHandler func(addr string)

// Server glues the transport, world, tick loop, and snapshot generator
// together for the UDP wire variant described in §4.5 and §6.
type Server struct {
	cfg       Config
	transport *transport.Transport
	world     *world.World
	loop      *tickloop.Loop
	generator *snapshot.Generator
	metrics   *Metrics

	mu    sync.Mutex
	peers map[string]*Peer

	ScoreHandler      ScoreHandler
	ConnectHandler    ConnectHandler
	DisconnectHandler DisconnectHandler

	lastLeftScore, lastRightScore uint32

	stopCleanup chan struct{}
}

// NewServer constructs a server with sanitized config; it does not bind a
// socket until Start is called. metrics may be nil to disable recording.
func NewServer(cfg Config, metrics *Metrics) *Server {
	cfg = sanitizeConfig(cfg)
	return &Server{
		cfg:       cfg,
		world:     world.New(cfg.WorldConfig),
		loop:      tickloop.New(cfg.TargetTPS),
		generator: snapshot.NewGenerator(cfg.KeyframeInterval, cfg.HistorySize),
		metrics:   metrics,
		peers:     make(map[string]*Peer),
	}
}

// Start binds the UDP socket, begins the receive loop, and starts the tick
// loop driving the simulation and broadcast.
func (s *Server) Start() error {
	t, err := transport.NewTransport(s.cfg.ListenAddr)
	if err != nil {
		return errors.Wrap(err, "start netcode server")
	}
	s.transport = t
	s.transport.Start(s.handleDatagram)
	s.loop.Start(s.handleTick)
	s.stopCleanup = make(chan struct{})
	go s.cleanupLoop(s.stopCleanup)
	logger.Success("netcode server listening on %s at %.0f TPS", s.cfg.ListenAddr, s.cfg.TargetTPS)
	return nil
}

// Stop tears down the tick loop, the cleanup loop, and the transport;
// idempotent.
func (s *Server) Stop() {
	s.loop.Stop()
	if s.stopCleanup != nil {
		close(s.stopCleanup)
		s.stopCleanup = nil
	}
	if s.transport != nil {
		_ = s.transport.Stop()
	}
}

// cleanupLoop releases the role slot of any peer that hasn't sent input
// within PeerTimeout, mirroring the teacher's sessionCleanupLoop.
func (s *Server) cleanupLoop(stop chan struct{}) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sweepStalePeers()
		}
	}
}

func (s *Server) sweepStalePeers() {
	now := time.Now()

	s.mu.Lock()
	var stale []string
	for key, p := range s.peers {
		if now.Sub(p.LastHeard) > PeerTimeout {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		delete(s.peers, key)
	}
	s.mu.Unlock()

	for _, key := range stale {
		logger.Info("server: released stale peer %s", key)
		if s.DisconnectHandler != nil {
			s.DisconnectHandler(key)
		}
	}
}

// LocalAddr returns the bound UDP address, useful when ListenAddr used an
// ephemeral port (":0") in tests.
func (s *Server) LocalAddr() net.Addr {
	return s.transport.LocalAddr()
}

// CheckpointDue reports whether tick lands on the checkpoint cadence, so an
// external collaborator can persist an encoded keyframe without the core
// depending on any storage client (§9).
func CheckpointDue(tick uint64) bool {
	return tick%CheckpointIntervalTicks == 0
}

func (s *Server) handleDatagram(addr *net.UDPAddr, tag uint8, payload []byte) {
	switch tag {
	case TagInput:
		s.handleInput(addr, payload)
	default:
		if s.metrics != nil {
			s.metrics.IncDroppedParse()
		}
		logger.Debug("server: dropped unknown tag", logger.Fields{"tag": tag, "peer": addr.String()})
	}
}

func (s *Server) handleInput(addr *net.UDPAddr, payload []byte) {
	msg, err := DecodeInput(payload)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncDroppedParse()
		}
		return
	}

	peer := s.peerFor(addr)
	peer.LastClientSeq = msg.ClientSeq
	peer.LastHeard = time.Now()

	if side, ok := peer.Role.side(); ok {
		s.world.SetPlayerInput(side, clampDelta(msg.DX))
	}

	ack := EncodeServerAck(ServerAckMessage{
		LastClientSeq: msg.ClientSeq,
		ServerTick:    uint32(s.world.Snapshot().Tick),
	})
	_ = s.transport.Send(addr, TagServerAck, ack, true)
}

func clampDelta(dx int32) int32 {
	switch {
	case dx > 0:
		return 1
	case dx < 0:
		return -1
	default:
		return 0
	}
}

// peerFor returns the peer record for addr, assigning a role on first
// contact per §4.5's slot policy: Left if free, else Right, else Spectator.
func (s *Server) peerFor(addr *net.UDPAddr) *Peer {
	key := addr.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.peers[key]; ok {
		return p
	}

	p := NewPeer(addr)
	p.Role = s.assignRoleLocked()
	s.peers[key] = p
	logger.Info("server: assigned role %v to %s", p.Role, key)
	if s.ConnectHandler != nil {
		s.ConnectHandler(key, p.Role.wire().String())
	}
	return p
}

func (s *Server) assignRoleLocked() Role {
	leftTaken, rightTaken := false, false
	for _, p := range s.peers {
		switch p.Role {
		case RoleLeft:
			leftTaken = true
		case RoleRight:
			rightTaken = true
		}
	}
	if !leftTaken {
		return RoleLeft
	}
	if !rightTaken {
		return RoleRight
	}
	return RoleSpectator
}

func (s *Server) handleTick(tick uint64, dtSeconds float64) {
	start := time.Now()

	state := s.world.Step(dtSeconds)
	s.announceScoreIfChanged(state)

	encodeStart := time.Now()
	encoded := s.generator.Encode(state)
	encodeDuration := time.Since(encodeStart)

	s.broadcast(encoded)
	s.transport.Update()

	if s.metrics != nil {
		s.metrics.ObserveTick(time.Since(start))
		s.metrics.ObserveEncode(encodeDuration, len(encoded.Payload), encoded.IsKeyframe)
		s.metrics.ObserveCounters(s.transport.SampleCounters())
		s.metrics.SetActiveRoles(s.activeRoleCount())
	}
	_ = tick
}

func (s *Server) announceScoreIfChanged(state world.State) {
	if state.LeftScore == s.lastLeftScore && state.RightScore == s.lastRightScore {
		return
	}
	s.lastLeftScore, s.lastRightScore = state.LeftScore, state.RightScore
	if s.ScoreHandler != nil {
		s.ScoreHandler(state.LeftScore, state.RightScore)
	}
}

func (s *Server) broadcast(encoded snapshot.Encoded) {
	s.mu.Lock()
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		if p.Role != RoleUnassigned {
			peers = append(peers, p)
		}
	}
	s.mu.Unlock()

	for _, p := range peers {
		msg := EncodeSnapshot(SnapshotMessage{
			Tick:       uint32(encoded.Tick),
			IsKeyframe: encoded.IsKeyframe,
			BaseTick:   uint32(encoded.BaseTick),
			State:      encoded.Payload,
			Role:       p.Role.wire(),
		})
		_ = s.transport.Send(p.Addr, TagSnapshot, msg, false)
	}
}

func (s *Server) activeRoleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, p := range s.peers {
		if p.Role != RoleUnassigned {
			count++
		}
	}
	return count
}
