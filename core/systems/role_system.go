// Package systems hosts small ID-keyed manager types shared by the
// gamemode layer. RoleSystem keeps the teacher's vehicle_system.go
// map-plus-counter shape, repurposed to track the Left/Right/Spectator
// slot table (§3, §4.5) from the gamemode side rather than duplicating the
// netcode server's own peer table.
package systems

import "pongnet/pkg/logger"

// RoleSystem mirrors connect/disconnect events into a simple
// peer-address-keyed slot table for the gamemode layer to query — it does
// not itself assign roles (that's the netcode server's job); it only
// reflects announcements the server makes.
type RoleSystem struct {
	slots map[string]SlotInfo
}

// SlotInfo is one tracked peer's address and last-known role.
type SlotInfo struct {
	Addr string
	Role string
}

// NewRoleSystem creates an empty role system.
func NewRoleSystem() *RoleSystem {
	return &RoleSystem{slots: make(map[string]SlotInfo)}
}

// Connect records a peer's assigned role.
func (rs *RoleSystem) Connect(addr, role string) {
	rs.slots[addr] = SlotInfo{Addr: addr, Role: role}
	logger.Info("role system: %s bound to %s", addr, role)
}

// Disconnect removes a tracked peer.
func (rs *RoleSystem) Disconnect(addr string) bool {
	if _, exists := rs.slots[addr]; exists {
		delete(rs.slots, addr)
		logger.Info("role system: %s released", addr)
		return true
	}
	return false
}

// Slot returns a tracked peer's slot info.
func (rs *RoleSystem) Slot(addr string) (SlotInfo, bool) {
	info, exists := rs.slots[addr]
	return info, exists
}

// Count returns the number of tracked peers.
func (rs *RoleSystem) Count() int {
	return len(rs.slots)
}
