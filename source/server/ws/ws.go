// Package ws implements C5's connection-oriented variant: the WebSocket
// JSON transport surface described in §6 and the reconnection contract in
// §4.5. It shares the world, tick loop, and snapshot generator with the UDP
// variant in package server; only the wire surface and the role-slot
// lifecycle (Empty/Active/Reconnecting) differ, grounded on
// original_source's gameserver-fundamentals/lab1.4-ws-pong/pong_server.h.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pongnet/pkg/logger"
	"pongnet/source/snapshot"
	"pongnet/source/tickloop"
	"pongnet/source/world"
)

// ReconnectTimeout is how long a dropped role slot waits in Reconnecting
// before falling back to Empty (§4.5, default 10s).
const ReconnectTimeout = 10 * time.Second

// SlotStatus is a role slot's lifecycle state.
type SlotStatus int

const (
	SlotEmpty SlotStatus = iota
	SlotActive
	SlotReconnecting
)

// Role mirrors the UDP variant's role names in their lower-case JSON form.
type Role string

const (
	RoleLeft      Role = "left"
	RoleRight     Role = "right"
	RoleSpectator Role = "spectator"
)

// envelope is the outer {"type": ...} frame every WebSocket message uses.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type helloData struct {
	PlayerID string `json:"player_id,omitempty"`
	MatchID  string `json:"match_id,omitempty"`
}

type welcomeData struct {
	PlayerID     string  `json:"player_id"`
	Role         Role    `json:"role"`
	TickRate     float64 `json:"tick_rate"`
	Reconnected  bool    `json:"reconnected"`
	ServerTimeMs int64   `json:"server_time_ms"`
}

type inputData struct {
	ClientSeq uint32 `json:"client_seq"`
	Direction int32  `json:"direction"`
}

type inputAckData struct {
	LastClientSeq uint32 `json:"last_client_seq"`
	ServerTick    uint64 `json:"server_tick"`
}

type stateData struct {
	Tick       uint64  `json:"tick"`
	BallX      float64 `json:"ball_x"`
	BallY      float64 `json:"ball_y"`
	BallVX     float64 `json:"ball_vx"`
	BallVY     float64 `json:"ball_vy"`
	Left       float64 `json:"left_paddle_y"`
	Right      float64 `json:"right_paddle_y"`
	LeftScore  uint32  `json:"left_score"`
	RightScore uint32  `json:"right_score"`
}

type rolesData struct {
	Left      string `json:"left,omitempty"`
	Right     string `json:"right,omitempty"`
	Observers int    `json:"observers"`
}

type metricsData struct {
	ActiveRoles  int     `json:"active_roles"`
	TickRate     float64 `json:"tick_rate"`
	LastTickTick uint64  `json:"last_tick"`
}

// slot is one Left/Right/Spectator binding, tracked by player ID so a
// dropped connection can reclaim it within ReconnectTimeout.
type slot struct {
	status    SlotStatus
	playerID  string
	conn      *sessionConn
	droppedAt time.Time
}

type sessionConn struct {
	ws       *websocket.Conn
	mu       sync.Mutex // guards concurrent writes, gorilla requires a single writer
	playerID string
	role     Role
}

func (c *sessionConn) send(msgType string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(envelope{Type: msgType, Data: raw})
}

// Server is the WebSocket-flavored C5 variant.
type Server struct {
	upgrader websocket.Upgrader

	world     *world.World
	loop      *tickloop.Loop
	generator *snapshot.Generator
	targetTPS float64

	mu    sync.Mutex
	left  slot
	right slot
	specs map[string]*sessionConn // keyed by player id
}

// NewServer constructs a WebSocket server sharing the same arena config and
// tick rate as the UDP variant.
func NewServer(worldConfig world.Config, targetTPS float64) *Server {
	return &Server{
		upgrader:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		world:     world.New(worldConfig),
		loop:      tickloop.New(targetTPS),
		generator: snapshot.NewGenerator(snapshot.DefaultKeyframeInterval, snapshot.DefaultHistorySize),
		targetTPS: targetTPS,
		specs:     make(map[string]*sessionConn),
	}
}

// Start begins the tick loop that steps the world and broadcasts state.
func (s *Server) Start() {
	s.loop.Start(s.handleTick)
}

// Stop halts the tick loop; idempotent.
func (s *Server) Stop() {
	s.loop.Stop()
}

// ServeHTTP upgrades the connection and runs its read loop until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws: upgrade failed: %v", err)
		return
	}
	s.serveConn(conn)
}

func (s *Server) serveConn(conn *websocket.Conn) {
	sess := &sessionConn{ws: conn}
	defer s.onDisconnect(sess)

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		s.dispatch(sess, env)
	}
}

func (s *Server) dispatch(sess *sessionConn, env envelope) {
	switch env.Type {
	case "hello":
		var data helloData
		_ = json.Unmarshal(env.Data, &data)
		s.handleHello(sess, data)
	case "input":
		var data inputData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return
		}
		s.handleInput(sess, data)
	case "ping":
		_ = sess.send("pong", struct{}{})
	case "metrics-request":
		s.handleMetricsRequest(sess)
	default:
		logger.Debug("ws: dropped unknown envelope type", logger.Fields{"type": env.Type})
	}
}

func (s *Server) handleHello(sess *sessionConn, data helloData) {
	s.mu.Lock()
	role, reconnected := s.bindSlotLocked(sess, data.PlayerID)
	s.mu.Unlock()

	sess.role = role
	if sess.playerID == "" {
		sess.playerID = uuid.NewString()
	}

	_ = sess.send("welcome", welcomeData{
		PlayerID:     sess.playerID,
		Role:         role,
		TickRate:     s.targetTPS,
		Reconnected:  reconnected,
		ServerTimeMs: time.Now().UnixMilli(),
	})
	s.broadcastRoles()
}

// bindSlotLocked assigns sess to a role slot: a matching player_id within
// ReconnectTimeout of a Reconnecting slot reclaims it, otherwise the first
// Empty slot (Left, then Right) is taken, else the peer becomes a
// spectator. Must be called with s.mu held.
func (s *Server) bindSlotLocked(sess *sessionConn, playerID string) (Role, bool) {
	for role, sl := range map[Role]*slot{RoleLeft: &s.left, RoleRight: &s.right} {
		if sl.status == SlotReconnecting && sl.playerID == playerID && playerID != "" {
			if time.Since(sl.droppedAt) <= ReconnectTimeout {
				sl.status = SlotActive
				sl.conn = sess
				sess.playerID = playerID
				return role, true
			}
			sl.status = SlotEmpty
			sl.playerID = ""
		}
	}

	if s.left.status == SlotEmpty {
		s.left = slot{status: SlotActive, conn: sess, playerID: orNewID(playerID)}
		sess.playerID = s.left.playerID
		return RoleLeft, false
	}
	if s.right.status == SlotEmpty {
		s.right = slot{status: SlotActive, conn: sess, playerID: orNewID(playerID)}
		sess.playerID = s.right.playerID
		return RoleRight, false
	}

	id := orNewID(playerID)
	sess.playerID = id
	s.specs[id] = sess
	return RoleSpectator, false
}

func orNewID(playerID string) string {
	if playerID != "" {
		return playerID
	}
	return uuid.NewString()
}

func (s *Server) handleInput(sess *sessionConn, data inputData) {
	side, ok := sessionSide(sess.role)
	if !ok {
		return
	}
	s.world.SetPlayerInput(side, clampDirection(data.Direction))

	ack := inputAckData{LastClientSeq: data.ClientSeq, ServerTick: currentTick(s.world)}
	_ = sess.send("input-ack", ack)
}

func sessionSide(role Role) (world.Side, bool) {
	switch role {
	case RoleLeft:
		return world.Left, true
	case RoleRight:
		return world.Right, true
	default:
		return world.Spectator, false
	}
}

func clampDirection(d int32) int32 {
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	default:
		return 0
	}
}

func currentTick(w *world.World) uint64 {
	return w.Snapshot().Tick
}

func (s *Server) handleMetricsRequest(sess *sessionConn) {
	s.mu.Lock()
	active := s.activeCountLocked()
	s.mu.Unlock()

	_ = sess.send("metrics", metricsData{
		ActiveRoles:  active,
		TickRate:     s.targetTPS,
		LastTickTick: currentTick(s.world),
	})
}

func (s *Server) activeCountLocked() int {
	count := len(s.specs)
	if s.left.status == SlotActive {
		count++
	}
	if s.right.status == SlotActive {
		count++
	}
	return count
}

func (s *Server) handleTick(tick uint64, dtSeconds float64) {
	state := s.world.Step(dtSeconds)
	_ = s.generator.Encode(state) // keeps history aligned with the UDP variant's cadence, even though JSON frames carry fields directly

	// Open Question (a): broadcast_state sends the same state message to
	// every session regardless of role — players and spectators alike.
	msg := stateData{
		Tick: state.Tick, BallX: state.BallX, BallY: state.BallY,
		BallVX: state.BallVX, BallVY: state.BallVY,
		Left: state.LeftPaddleY, Right: state.RightPaddleY,
		LeftScore: state.LeftScore, RightScore: state.RightScore,
	}

	s.mu.Lock()
	recipients := s.allSessionsLocked()
	s.mu.Unlock()

	for _, sess := range recipients {
		_ = sess.send("state", msg)
	}
	_ = tick
}

func (s *Server) allSessionsLocked() []*sessionConn {
	sessions := make([]*sessionConn, 0, len(s.specs)+2)
	if s.left.status == SlotActive {
		sessions = append(sessions, s.left.conn)
	}
	if s.right.status == SlotActive {
		sessions = append(sessions, s.right.conn)
	}
	for _, sess := range s.specs {
		sessions = append(sessions, sess)
	}
	return sessions
}

func (s *Server) broadcastRoles() {
	s.mu.Lock()
	data := rolesData{Observers: len(s.specs)}
	if s.left.status != SlotEmpty {
		data.Left = s.left.playerID
	}
	if s.right.status != SlotEmpty {
		data.Right = s.right.playerID
	}
	recipients := s.allSessionsLocked()
	s.mu.Unlock()

	for _, sess := range recipients {
		_ = sess.send("roles", data)
	}
}

// onDisconnect drops a session's slot into Reconnecting (for Left/Right)
// so a matching hello within ReconnectTimeout can reclaim it, or removes a
// spectator outright.
func (s *Server) onDisconnect(sess *sessionConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.left.conn == sess:
		s.left.status = SlotReconnecting
		s.left.droppedAt = time.Now()
		s.left.conn = nil
	case s.right.conn == sess:
		s.right.status = SlotReconnecting
		s.right.droppedAt = time.Now()
		s.right.conn = nil
	default:
		delete(s.specs, sess.playerID)
	}
}
