package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeHeader(t *testing.T) {
	h := Header{Seq: 0x0102, Ack: 0x0304, AckBits: 0x05060708, Tag: 2}
	data := encodeHeader(h)

	require.Len(t, data, HeaderSize)
	expected := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x02}
	require.Equal(t, expected, data)
}

func TestDecodeHeaderRoundTrip(t *testing.T) {
	h := Header{Seq: 1234, Ack: 1230, AckBits: 0xF0F0F0F0, Tag: 3}
	decoded := decodeHeader(encodeHeader(h))
	require.Equal(t, h, decoded)
}

func TestIsSeqNewer(t *testing.T) {
	require.True(t, isSeqNewer(2, 1))
	require.False(t, isSeqNewer(1, 2))
	require.False(t, isSeqNewer(5, 5))

	// wraparound: 0 is newer than 65535
	require.True(t, isSeqNewer(0, 65535))
	require.False(t, isSeqNewer(65535, 0))
}

func TestIsSeqAckedDirectMatchEvenWithoutBits(t *testing.T) {
	// Open Question (b): seq == ack is acked even when ack_bits == 0.
	require.True(t, isSeqAcked(10, 10, 0))
}

func TestIsSeqAckedBitmask(t *testing.T) {
	// ack=10, bit 1 set means seq=9 was received.
	require.True(t, isSeqAcked(9, 10, 1<<0))
	require.False(t, isSeqAcked(8, 10, 1<<0))
}

func TestIsSeqAckedOutOfWindow(t *testing.T) {
	require.False(t, isSeqAcked(0, 40, 0xFFFFFFFF))
}

func TestUpdateReceiveStateAndHasReceived(t *testing.T) {
	var state receiveState
	updateReceiveState(&state, 1)
	updateReceiveState(&state, 2)
	updateReceiveState(&state, 3)

	require.True(t, hasReceived(&state, 3))
	require.True(t, hasReceived(&state, 2))
	require.True(t, hasReceived(&state, 1))
	require.False(t, hasReceived(&state, 0))
}

func TestUpdateReceiveStateOutOfOrder(t *testing.T) {
	var state receiveState
	updateReceiveState(&state, 5)
	updateReceiveState(&state, 3) // older, within window

	require.Equal(t, uint16(5), state.lastSeq)
	require.True(t, hasReceived(&state, 3))
	require.True(t, hasReceived(&state, 5))
	require.False(t, hasReceived(&state, 4))
}

// §8 invariant: has_received(state, last_seq) stays true even at the exact
// 32-wide window boundary, where the gap between the old and new lastSeq is
// precisely 32.
func TestUpdateReceiveStateKeepsBoundaryBitAtExactWindowWidth(t *testing.T) {
	var state receiveState
	updateReceiveState(&state, 1)
	updateReceiveState(&state, 33) // gap of exactly windowBits

	require.True(t, hasReceived(&state, 1))
	require.True(t, hasReceived(&state, 33))
}

// Scenario test from §8(1): seq=1,2,3,2 delivers payloads for 1,2,3 and
// ends with exactly one duplicate drop. This drives the same accept/drop
// decision processPacket makes, at the receiveState level, since exercising
// it through two live sockets doesn't add any determinism the state machine
// doesn't already guarantee.
func TestDuplicateSuppression(t *testing.T) {
	var state receiveState
	seqs := []uint16{1, 2, 3, 2}
	var delivered []uint16
	dupes := 0
	for _, seq := range seqs {
		if state.hasLastSeq {
			if !isSeqNewer(seq, state.lastSeq) {
				diff := state.lastSeq - seq
				if diff == 0 || hasReceived(&state, seq) {
					dupes++
					continue
				}
			}
		}
		updateReceiveState(&state, seq)
		delivered = append(delivered, seq)
	}

	require.Equal(t, []uint16{1, 2, 3}, delivered)
	require.Equal(t, 1, dupes)
}

func TestSampleCountersInitiallyZero(t *testing.T) {
	tr, err := NewTransport("127.0.0.1:0")
	require.NoError(t, err)
	defer tr.Stop()

	c := tr.SampleCounters()
	require.Zero(t, c.ReliableRetriesTotal)
	require.Zero(t, c.DroppedDuplicatesTotal)
}

func TestSendAndReceiveOverLoopback(t *testing.T) {
	server, err := NewTransport("127.0.0.1:0")
	require.NoError(t, err)
	defer server.Stop()

	client, err := NewTransport("127.0.0.1:0")
	require.NoError(t, err)
	defer client.Stop()

	received := make(chan string, 1)
	server.Start(func(peer *net.UDPAddr, tag uint8, payload []byte) {
		require.Equal(t, uint8(1), tag)
		received <- string(payload)
	})
	client.Start(func(peer *net.UDPAddr, tag uint8, payload []byte) {})

	serverAddr := server.LocalAddr().(*net.UDPAddr)
	err = client.Send(serverAddr, 1, []byte("hello"), false)
	require.NoError(t, err)

	select {
	case got := <-received:
		require.Equal(t, "hello", got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}

func TestReliableSendRetransmitsUntilAcked(t *testing.T) {
	server, err := NewTransport("127.0.0.1:0")
	require.NoError(t, err)
	defer server.Stop()

	client, err := NewTransport("127.0.0.1:0")
	require.NoError(t, err)
	defer client.Stop()

	var deliveries int
	server.Start(func(peer *net.UDPAddr, tag uint8, payload []byte) {
		deliveries++
	})
	client.Start(func(peer *net.UDPAddr, tag uint8, payload []byte) {})

	serverAddr := server.LocalAddr().(*net.UDPAddr)
	require.NoError(t, client.Send(serverAddr, 1, []byte("reliable"), true))

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, deliveries)

	// No ack flows back in this test, so Update should schedule a resend
	// once the backoff interval elapses. The resend reuses the same seq, so
	// the receiver counts it as a duplicate instead of delivering it again.
	time.Sleep(BaseRTO)
	client.Update()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, deliveries)
	require.GreaterOrEqual(t, server.SampleCounters().DroppedDuplicatesTotal, uint64(1))

	counters := client.SampleCounters()
	require.GreaterOrEqual(t, counters.ReliableRetriesTotal, uint64(1))
}

func TestSendWindowFull(t *testing.T) {
	tr, err := NewTransport("127.0.0.1:0")
	require.NoError(t, err)
	defer tr.Stop()
	tr.Start(func(peer *net.UDPAddr, tag uint8, payload []byte) {})

	target, err := net.ResolveUDPAddr("udp", "127.0.0.1:1") // unreachable, never acked
	require.NoError(t, err)

	for i := 0; i < SendWindow; i++ {
		require.NoError(t, tr.Send(target, 1, []byte("x"), true))
	}
	err = tr.Send(target, 1, []byte("x"), true)
	require.ErrorIs(t, err, ErrSendWindowFull)

	counters := tr.SampleCounters()
	require.Equal(t, uint64(1), counters.DroppedWindowTotal)
}
