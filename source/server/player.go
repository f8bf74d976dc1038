package server

import (
	"net"
	"time"

	"pongnet/source/world"
)

// Role identifies a peer's logical slot. The zero value is RoleUnassigned
// so a freshly-created Peer is never mistaken for RoleLeft.
type Role uint8

const (
	RoleUnassigned Role = iota
	RoleLeft
	RoleRight
	RoleSpectator
)

func (r Role) wire() RoleWire {
	switch r {
	case RoleLeft:
		return RoleWireLeft
	case RoleRight:
		return RoleWireRight
	default:
		return RoleWireSpectator
	}
}

func (r Role) side() (world.Side, bool) {
	switch r {
	case RoleLeft:
		return world.Left, true
	case RoleRight:
		return world.Right, true
	default:
		return world.Spectator, false
	}
}

// Peer is one connected endpoint: its network address, assigned role, and
// the bookkeeping the server needs to ack inputs and reconnect slots.
type Peer struct {
	Addr          *net.UDPAddr
	Role          Role
	LastClientSeq uint32
	LastHeard     time.Time
}

// NewPeer constructs an unassigned peer bound to addr.
func NewPeer(addr *net.UDPAddr) *Peer {
	return &Peer{Addr: addr, Role: RoleUnassigned, LastHeard: time.Now()}
}
