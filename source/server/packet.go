package server

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Message tags per §6: the byte following the transport header.
const (
	TagInput      uint8 = 1
	TagSnapshot   uint8 = 2
	TagServerAck  uint8 = 3
)

// RoleWire mirrors the Snapshot message's role enum on the wire.
type RoleWire uint8

const (
	RoleWireLeft RoleWire = iota
	RoleWireRight
	RoleWireSpectator
)

func (r RoleWire) String() string {
	switch r {
	case RoleWireLeft:
		return "left"
	case RoleWireRight:
		return "right"
	default:
		return "spectator"
	}
}

// ErrMalformedPacket is returned by the decode helpers on a truncated or
// otherwise unparsable body; callers drop the packet and bump dropped_parse.
var ErrMalformedPacket = errors.New("server: malformed packet body")

// InputMessage is the wire body of a TagInput datagram (§6).
type InputMessage struct {
	ClientSeq   uint32
	TimestampNs uint64
	DX          int32
	DY          int32
	Fire        bool
}

// EncodeInput serializes an InputMessage, little-endian, matching the
// snapshot codec's field-encoding idiom.
const inputMessageSize = 21 // seq(4) + timestamp(8) + dx(4) + dy(4) + fire(1)

func EncodeInput(m InputMessage) []byte {
	buf := make([]byte, 0, inputMessageSize)
	buf = appendUint32LE(buf, m.ClientSeq)
	buf = appendUint64LE(buf, m.TimestampNs)
	buf = appendInt32LE(buf, m.DX)
	buf = appendInt32LE(buf, m.DY)
	buf = append(buf, boolByte(m.Fire))
	return buf
}

// DecodeInput reverses EncodeInput.
func DecodeInput(data []byte) (InputMessage, error) {
	if len(data) < inputMessageSize {
		return InputMessage{}, ErrMalformedPacket
	}
	return InputMessage{
		ClientSeq:   binary.LittleEndian.Uint32(data[0:4]),
		TimestampNs: binary.LittleEndian.Uint64(data[4:12]),
		DX:          int32(binary.LittleEndian.Uint32(data[12:16])),
		DY:          int32(binary.LittleEndian.Uint32(data[16:20])),
		Fire:        data[20] != 0,
	}, nil
}

// SnapshotMessage is the wire body of a TagSnapshot datagram (§6). State
// holds the codec's already-encoded keyframe/delta payload (§4.4).
type SnapshotMessage struct {
	Tick       uint32
	IsKeyframe bool
	BaseTick   uint32
	State      []byte
	Role       RoleWire
}

// EncodeSnapshot serializes a SnapshotMessage. State is length-prefixed
// since keyframe and delta payloads differ in size.
func EncodeSnapshot(m SnapshotMessage) []byte {
	buf := make([]byte, 0, 10+len(m.State))
	buf = appendUint32LE(buf, m.Tick)
	buf = append(buf, boolByte(m.IsKeyframe))
	buf = appendUint32LE(buf, m.BaseTick)
	buf = append(buf, byte(len(m.State)))
	buf = append(buf, m.State...)
	buf = append(buf, byte(m.Role))
	return buf
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(data []byte) (SnapshotMessage, error) {
	if len(data) < 10 {
		return SnapshotMessage{}, ErrMalformedPacket
	}
	m := SnapshotMessage{
		Tick:       binary.LittleEndian.Uint32(data[0:4]),
		IsKeyframe: data[4] != 0,
		BaseTick:   binary.LittleEndian.Uint32(data[5:9]),
	}
	stateLen := int(data[9])
	if len(data) < 10+stateLen+1 {
		return SnapshotMessage{}, ErrMalformedPacket
	}
	m.State = append([]byte(nil), data[10:10+stateLen]...)
	m.Role = RoleWire(data[10+stateLen])
	return m, nil
}

// ServerAckMessage is the wire body of a TagServerAck datagram (§6).
type ServerAckMessage struct {
	LastClientSeq uint32
	ServerTick    uint32
}

// EncodeServerAck serializes a ServerAckMessage.
func EncodeServerAck(m ServerAckMessage) []byte {
	buf := make([]byte, 0, 8)
	buf = appendUint32LE(buf, m.LastClientSeq)
	buf = appendUint32LE(buf, m.ServerTick)
	return buf
}

// DecodeServerAck reverses EncodeServerAck.
func DecodeServerAck(data []byte) (ServerAckMessage, error) {
	if len(data) < 8 {
		return ServerAckMessage{}, ErrMalformedPacket
	}
	return ServerAckMessage{
		LastClientSeq: binary.LittleEndian.Uint32(data[0:4]),
		ServerTick:    binary.LittleEndian.Uint32(data[4:8]),
	}, nil
}

func appendUint32LE(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendUint64LE(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56),
	)
}

func appendInt32LE(buf []byte, v int32) []byte {
	return appendUint32LE(buf, uint32(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
