package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeInputRoundTrip(t *testing.T) {
	m := InputMessage{ClientSeq: 42, TimestampNs: 123456789, DX: -1, DY: 1, Fire: true}
	got, err := DecodeInput(EncodeInput(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestDecodeInputTruncatedFails(t *testing.T) {
	_, err := DecodeInput([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrMalformedPacket)
}

func TestEncodeDecodeSnapshotRoundTrip(t *testing.T) {
	m := SnapshotMessage{
		Tick:       100,
		IsKeyframe: true,
		BaseTick:   100,
		State:      []byte{1, 2, 3, 4, 5},
		Role:       RoleWireRight,
	}
	got, err := DecodeSnapshot(EncodeSnapshot(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestEncodeDecodeServerAckRoundTrip(t *testing.T) {
	m := ServerAckMessage{LastClientSeq: 7, ServerTick: 900}
	got, err := DecodeServerAck(EncodeServerAck(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}
