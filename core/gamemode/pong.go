// Package gamemode hooks the netcode server's domain events into
// player-facing announcements. Adapted from the teacher's freeroam.go
// connect/spawn/broadcast hook shape into the canonical paddle/ball
// ruleset's score-announcement hooks; the admin/player slash-command
// framework is trimmed (no chat command surface exists in this domain),
// but the broadcast-to-player/broadcast-to-all primitives and the
// teacher's emoji-tagged log lines survive, repurposed to score/connect
// events.
package gamemode

import (
	"fmt"

	"pongnet/core/events"
	"pongnet/core/systems"
	"pongnet/pkg/logger"
)

// PongGamemode tracks connected peers by address and announces score
// changes and connect/disconnect events the netcode server raises. The
// role table is delegated to systems.RoleSystem, and every announcement
// is also raised on an events.EventManager bus so a future collaborator
// (stats, persistence) can subscribe without the server depending on it.
type PongGamemode struct {
	roles  *systems.RoleSystem
	events *events.EventManager
}

// NewPongGamemode creates a gamemode tracker with its own role table and
// event bus, subscribing its own logging handlers to each domain event.
func NewPongGamemode() *PongGamemode {
	gm := &PongGamemode{
		roles:  systems.NewRoleSystem(),
		events: events.NewEventManager(),
	}
	gm.events.Register(events.EventPlayerConnect, gm.logPlayerConnect)
	gm.events.Register(events.EventPlayerLeft, gm.logPlayerLeft)
	gm.events.Register(events.EventScored, gm.logScored)
	return gm
}

// OnPlayerConnect is called when a peer is assigned a role.
func (gm *PongGamemode) OnPlayerConnect(addr, role string) {
	gm.roles.Connect(addr, role)
	gm.events.Trigger(events.Event{Type: events.EventPlayerConnect, Data: events.PlayerData{Addr: addr, Role: role}})
}

// OnPlayerLeft is called when a peer's role slot is released.
func (gm *PongGamemode) OnPlayerLeft(addr string) {
	slot, exists := gm.roles.Slot(addr)
	if !exists {
		return
	}
	gm.roles.Disconnect(addr)
	gm.events.Trigger(events.Event{Type: events.EventPlayerLeft, Data: events.PlayerData{Addr: addr, Role: slot.Role}})
}

// OnScore is wired as the netcode server's ScoreHandler; it announces the
// updated score to every tracked peer.
func (gm *PongGamemode) OnScore(leftScore, rightScore uint32) {
	gm.events.Trigger(events.Event{Type: events.EventScored, Data: events.ScoredData{LeftScore: leftScore, RightScore: rightScore}})
}

func (gm *PongGamemode) logPlayerConnect(e events.Event) {
	data := e.Data.(events.PlayerData)
	logger.Info("🏓 [Gamemode] %s joined as %s", data.Addr, data.Role)
	gm.SendMessageToAll(fmt.Sprintf("%s joined as %s", data.Addr, data.Role))
}

func (gm *PongGamemode) logPlayerLeft(e events.Event) {
	data := e.Data.(events.PlayerData)
	logger.Info("🏓 [Gamemode] %s (%s) left", data.Addr, data.Role)
	gm.SendMessageToAll(fmt.Sprintf("%s has left the match", data.Addr))
}

func (gm *PongGamemode) logScored(e events.Event) {
	data := e.Data.(events.ScoredData)
	logger.InfoCyan("🏓 [Gamemode] score %d - %d", data.LeftScore, data.RightScore)
	gm.SendMessageToAll(fmt.Sprintf("Score: %d - %d", data.LeftScore, data.RightScore))
}

// SendMessageToPlayer logs a message addressed to one peer. The netcode
// core has no chat channel of its own (§1 scopes it out); this is the
// logging stand-in the teacher used before its own packet-sending path
// existed.
func (gm *PongGamemode) SendMessageToPlayer(addr, message string) {
	logger.Info("📨 [To %s] %s", addr, message)
}

// SendMessageToAll logs a message addressed to every tracked peer.
func (gm *PongGamemode) SendMessageToAll(message string) {
	logger.Info("📢 [Broadcast] %s", message)
}

// PlayerCount returns the number of tracked peers.
func (gm *PongGamemode) PlayerCount() int {
	return gm.roles.Count()
}
