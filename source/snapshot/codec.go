// Package snapshot implements the keyframe/delta world-state codec: a
// per-client, bandwidth-efficient encoding with reliable recovery after
// packet loss, grounded on the reference engine's mini::sync::DeltaCodec
// and SnapshotGenerator/SnapshotDecoder. Field encoding reuses the
// teacher's little-endian write-helper idiom from source/protocol/rpc.go
// (writeUint8/writeInt32LE/writeFloat32LE).
package snapshot

import (
	"math"

	"github.com/pkg/errors"

	"pongnet/source/world"
)

// KeyframeSize and DeltaSize are the fixed payload sizes per §4.4.
const (
	KeyframeSize = 34
	DeltaSize    = 30
)

// ErrMissingBaseState is returned by Decoder.Apply when a delta's base_tick
// cannot be found in the decoder's history.
var ErrMissingBaseState = errors.New("snapshot: missing base state for delta")

func writeUint32LE(buf *[]byte, v uint32) {
	*buf = append(*buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func writeInt16LE(buf *[]byte, v int16) {
	u := uint16(v)
	*buf = append(*buf, byte(u), byte(u>>8))
}

func writeInt8(buf *[]byte, v int8) {
	*buf = append(*buf, byte(v))
}

func writeFloat32LE(buf *[]byte, f float32) {
	writeUint32LE(buf, math.Float32bits(f))
}

func readUint32LE(buf []byte, offset *int) uint32 {
	v := uint32(buf[*offset]) | uint32(buf[*offset+1])<<8 | uint32(buf[*offset+2])<<16 | uint32(buf[*offset+3])<<24
	*offset += 4
	return v
}

func readInt16LE(buf []byte, offset *int) int16 {
	v := uint16(buf[*offset]) | uint16(buf[*offset+1])<<8
	*offset += 2
	return int16(v)
}

func readInt8(buf []byte, offset *int) int8 {
	v := int8(buf[*offset])
	*offset++
	return v
}

func readFloat32LE(buf []byte, offset *int) float32 {
	return math.Float32frombits(readUint32LE(buf, offset))
}

func writeState(buf *[]byte, s world.State) {
	writeFloat32LE(buf, float32(s.BallX))
	writeFloat32LE(buf, float32(s.BallY))
	writeFloat32LE(buf, float32(s.BallVX))
	writeFloat32LE(buf, float32(s.BallVY))
	writeFloat32LE(buf, float32(s.LeftPaddleY))
	writeFloat32LE(buf, float32(s.RightPaddleY))
	writeUint32LE(buf, s.LeftScore)
	writeUint32LE(buf, s.RightScore)
	writeInt8(buf, int8(s.LeftDirection))
	writeInt8(buf, int8(s.RightDirection))
}

func readState(buf []byte) world.State {
	offset := 0
	var s world.State
	s.BallX = float64(readFloat32LE(buf, &offset))
	s.BallY = float64(readFloat32LE(buf, &offset))
	s.BallVX = float64(readFloat32LE(buf, &offset))
	s.BallVY = float64(readFloat32LE(buf, &offset))
	s.LeftPaddleY = float64(readFloat32LE(buf, &offset))
	s.RightPaddleY = float64(readFloat32LE(buf, &offset))
	s.LeftScore = readUint32LE(buf, &offset)
	s.RightScore = readUint32LE(buf, &offset)
	s.LeftDirection = int32(readInt8(buf, &offset))
	s.RightDirection = int32(readInt8(buf, &offset))
	return s
}

// EncodeKeyframe encodes state's absolute fields, independently decodable.
func EncodeKeyframe(s world.State) []byte {
	buf := make([]byte, 0, KeyframeSize)
	writeState(&buf, s)
	return buf
}

// DecodeKeyframe reverses EncodeKeyframe, stamping tick onto the result.
func DecodeKeyframe(data []byte, tick uint64) world.State {
	s := readState(data)
	s.Tick = tick
	return s
}

// EncodeDelta encodes state as per-field differences against base: ball and
// paddle fields as float deltas, scores as signed 16-bit deltas, and
// directions as their absolute new value (not a delta).
func EncodeDelta(base, s world.State) []byte {
	buf := make([]byte, 0, DeltaSize)
	writeFloat32LE(&buf, float32(s.BallX-base.BallX))
	writeFloat32LE(&buf, float32(s.BallY-base.BallY))
	writeFloat32LE(&buf, float32(s.BallVX-base.BallVX))
	writeFloat32LE(&buf, float32(s.BallVY-base.BallVY))
	writeFloat32LE(&buf, float32(s.LeftPaddleY-base.LeftPaddleY))
	writeFloat32LE(&buf, float32(s.RightPaddleY-base.RightPaddleY))
	writeInt16LE(&buf, int16(int64(s.LeftScore)-int64(base.LeftScore)))
	writeInt16LE(&buf, int16(int64(s.RightScore)-int64(base.RightScore)))
	writeInt8(&buf, int8(s.LeftDirection))
	writeInt8(&buf, int8(s.RightDirection))
	return buf
}

// ApplyDelta reconstructs a state from base and an encoded delta, stamping tick.
func ApplyDelta(base world.State, delta []byte, tick uint64) world.State {
	offset := 0
	s := base
	s.BallX += float64(readFloat32LE(delta, &offset))
	s.BallY += float64(readFloat32LE(delta, &offset))
	s.BallVX += float64(readFloat32LE(delta, &offset))
	s.BallVY += float64(readFloat32LE(delta, &offset))
	s.LeftPaddleY += float64(readFloat32LE(delta, &offset))
	s.RightPaddleY += float64(readFloat32LE(delta, &offset))
	s.LeftScore = uint32(int64(base.LeftScore) + int64(readInt16LE(delta, &offset)))
	s.RightScore = uint32(int64(base.RightScore) + int64(readInt16LE(delta, &offset)))
	s.LeftDirection = int32(readInt8(delta, &offset))
	s.RightDirection = int32(readInt8(delta, &offset))
	s.Tick = tick
	return s
}
