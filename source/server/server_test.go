package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func udpAddr(t *testing.T, s string) *net.UDPAddr {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", s)
	require.NoError(t, err)
	return addr
}

func TestRoleAssignmentLeftThenRightThenSpectator(t *testing.T) {
	s := NewServer(DefaultConfig(), nil)

	first := s.peerFor(udpAddr(t, "127.0.0.1:1"))
	second := s.peerFor(udpAddr(t, "127.0.0.1:2"))
	third := s.peerFor(udpAddr(t, "127.0.0.1:3"))

	require.Equal(t, RoleLeft, first.Role)
	require.Equal(t, RoleRight, second.Role)
	require.Equal(t, RoleSpectator, third.Role)
}

func TestPeerForIsStableAcrossCalls(t *testing.T) {
	s := NewServer(DefaultConfig(), nil)
	addr := udpAddr(t, "127.0.0.1:1")

	a := s.peerFor(addr)
	b := s.peerFor(addr)

	require.Same(t, a, b)
}

func TestSanitizeConfigFallsBackOnInvalidTPS(t *testing.T) {
	cfg := sanitizeConfig(Config{TargetTPS: -1})
	require.Equal(t, 60.0, cfg.TargetTPS)
	require.Equal(t, ":40000", cfg.ListenAddr)
}

func TestCheckpointDue(t *testing.T) {
	require.True(t, CheckpointDue(0))
	require.True(t, CheckpointDue(60))
	require.False(t, CheckpointDue(30))
}

func TestPeerForInvokesConnectHandler(t *testing.T) {
	s := NewServer(DefaultConfig(), nil)
	var gotAddr, gotRole string
	s.ConnectHandler = func(addr, role string) {
		gotAddr, gotRole = addr, role
	}

	s.peerFor(udpAddr(t, "127.0.0.1:1"))

	require.Equal(t, "127.0.0.1:1", gotAddr)
	require.Equal(t, "left", gotRole)
}

func TestSweepStalePeersInvokesDisconnectHandler(t *testing.T) {
	s := NewServer(DefaultConfig(), nil)
	addr := udpAddr(t, "127.0.0.1:1")
	peer := s.peerFor(addr)
	peer.LastHeard = time.Now().Add(-2 * PeerTimeout)

	var disconnected string
	s.DisconnectHandler = func(addr string) { disconnected = addr }

	s.sweepStalePeers()

	require.Equal(t, "127.0.0.1:1", disconnected)
	require.Equal(t, 0, s.activeRoleCount())
}
