// Package transport implements the datagram transport described in the
// netcode core: framed, ordered, selectively-acknowledged unreliable UDP
// with per-peer retransmission. It is the Go-idiomatic generalization of
// the teacher's RakNet session/ACK machinery (pkg/raknet) down to a single
// 64-bit header and a 32-bit selective-ack bitmask, dropping RakNet's
// multi-record ACK/NACK and split-packet framing, which this protocol has
// no use for.
package transport

import (
	"encoding/binary"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"pongnet/pkg/logger"
)

// Defaults per the transport's retransmission contract.
const (
	HeaderSize     = 9 // seq(2) + ack(2) + ack_bits(4) + tag(1)
	BaseRTO        = 50 * time.Millisecond
	TTL            = 500 * time.Millisecond
	MaxRetries     = 5
	SendWindow     = 32
	RecvBufferSize = 2048
	windowBits     = 32
)

// ErrSendWindowFull is returned by Send when a peer already has SendWindow
// reliable packets pending acknowledgement.
var ErrSendWindowFull = errors.New("transport: send window full")

// ErrClosed is returned by Send once the transport has been stopped.
var ErrClosed = errors.New("transport: closed")

// Header is the 9-byte prefix carried by every datagram.
type Header struct {
	Seq     uint16
	Ack     uint16
	AckBits uint32
	Tag     uint8
}

func encodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], h.Seq)
	binary.BigEndian.PutUint16(buf[2:4], h.Ack)
	binary.BigEndian.PutUint32(buf[4:8], h.AckBits)
	buf[8] = h.Tag
	return buf
}

func decodeHeader(buf []byte) Header {
	return Header{
		Seq:     binary.BigEndian.Uint16(buf[0:2]),
		Ack:     binary.BigEndian.Uint16(buf[2:4]),
		AckBits: binary.BigEndian.Uint32(buf[4:8]),
		Tag:     buf[8],
	}
}

// isSeqNewer reports whether lhs is ahead of rhs on the modulo-2^16 sequence
// space, using a 2^15 window the way the original's is_seq_newer does.
func isSeqNewer(lhs, rhs uint16) bool {
	return int16(lhs-rhs) > 0
}

// isSeqAcked reports whether seq is covered by the (ack, ackBits) pair a
// peer sent back: a direct match or a set bit within 32 of ack. Open
// Question (b): seq == ack is acked even when ackBits == 0, checked first.
func isSeqAcked(seq, ack uint16, ackBits uint32) bool {
	if seq == ack {
		return true
	}
	diff := int16(ack - seq)
	if diff <= 0 || diff > windowBits {
		return false
	}
	mask := uint32(1) << (uint32(diff) - 1)
	return ackBits&mask != 0
}

// receiveState mirrors the wire header's ack fields for one peer's inbound
// sequence.
type receiveState struct {
	hasLastSeq bool
	lastSeq    uint16
	ackBits    uint32
}

// updateReceiveState folds a freshly-accepted seq into state.
func updateReceiveState(state *receiveState, seq uint16) {
	if !state.hasLastSeq {
		state.hasLastSeq = true
		state.lastSeq = seq
		state.ackBits = 0
		return
	}
	if isSeqNewer(seq, state.lastSeq) {
		diff := seq - state.lastSeq
		if diff > windowBits {
			state.ackBits = 0
		} else {
			state.ackBits <<= diff
			state.ackBits |= 1 << (diff - 1)
		}
		state.lastSeq = seq
	} else {
		diff := state.lastSeq - seq
		if diff >= 1 && diff <= windowBits {
			state.ackBits |= 1 << (diff - 1)
		}
	}
}

// hasReceived reports whether seq is already accounted for in state.
func hasReceived(state *receiveState, seq uint16) bool {
	if !state.hasLastSeq {
		return false
	}
	if seq == state.lastSeq {
		return true
	}
	if isSeqNewer(seq, state.lastSeq) {
		return false
	}
	diff := state.lastSeq - seq
	if diff == 0 {
		return true
	}
	if diff > windowBits {
		return false
	}
	mask := uint32(1) << (diff - 1)
	return state.ackBits&mask != 0
}

func backoffFor(retries uint32) time.Duration {
	interval := float64(BaseRTO)
	for i := uint32(0); i < retries; i++ {
		interval *= 1.5
	}
	return time.Duration(interval)
}

// pendingPacket is a reliable send awaiting acknowledgement.
type pendingPacket struct {
	seq       uint16
	tag       uint8
	payload   []byte
	firstSent time.Time
	lastSent  time.Time
	nextSend  time.Time
	retries   uint32
}

// peerState is the per-peer transport record, guarded by its own mutex so
// sends to distinct peers never contend.
type peerState struct {
	mu          sync.Mutex
	addr        *net.UDPAddr
	nextSendSeq uint16
	recv        receiveState
	pending     map[uint16]*pendingPacket
	lastHeard   time.Time
}

// Counters is a snapshot of the transport's fault/retry counters.
type Counters struct {
	ReliableRetriesTotal   uint64
	ReliableTimeoutsTotal  uint64
	DroppedDuplicatesTotal uint64
	DroppedOldTotal        uint64
	DroppedWindowTotal     uint64
}

// ReceiveHandler is invoked once per accepted, de-duplicated datagram.
type ReceiveHandler func(peer *net.UDPAddr, tag uint8, payload []byte)

// Transport is a UDP socket wrapped with per-peer sequencing, selective ack,
// and reliable-packet retransmission.
type Transport struct {
	conn *net.UDPConn

	mu      sync.Mutex
	peers   map[string]*peerState
	handler ReceiveHandler

	running        atomic.Bool
	metricsEnabled atomic.Bool

	retries     atomic.Uint64
	timeouts    atomic.Uint64
	dupDropped  atomic.Uint64
	oldDropped  atomic.Uint64
	winDropped  atomic.Uint64
}

// NewTransport opens and binds a UDP socket at laddr (e.g. ":40000").
func NewTransport(laddr string) (*Transport, error) {
	addr, err := net.ResolveUDPAddr("udp", laddr)
	if err != nil {
		return nil, errors.Wrap(err, "resolve listen address")
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "bind udp socket")
	}
	return &Transport{
		conn:  conn,
		peers: make(map[string]*peerState),
	}, nil
}

// SetMetricsEnabled toggles verbose debug logging of retransmits and drops.
func (t *Transport) SetMetricsEnabled(enabled bool) {
	t.metricsEnabled.Store(enabled)
}

// LocalAddr returns the bound local address.
func (t *Transport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Start begins the receive loop; handler is invoked for every accepted
// datagram after duplicate/old filtering.
func (t *Transport) Start(handler ReceiveHandler) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
	t.running.Store(true)
	go t.receiveLoop()
}

// Stop cancels the receive loop and closes the socket; idempotent.
func (t *Transport) Stop() error {
	if !t.running.CompareAndSwap(true, false) {
		return nil
	}
	return t.conn.Close()
}

func (t *Transport) receiveLoop() {
	buf := make([]byte, RecvBufferSize)
	for t.running.Load() {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if !t.running.Load() {
				return
			}
			logger.Warn("transport: recv error: %v", err)
			continue
		}
		if n < HeaderSize {
			continue
		}
		header := decodeHeader(buf[:n])
		payload := make([]byte, n-HeaderSize)
		copy(payload, buf[HeaderSize:n])
		t.processPacket(addr, header, payload)
	}
}

func (t *Transport) ensurePeerLocked(addr *net.UDPAddr) *peerState {
	key := addr.String()
	p, ok := t.peers[key]
	if !ok {
		p = &peerState{
			addr:        addr,
			nextSendSeq: 1,
			pending:     make(map[uint16]*pendingPacket),
		}
		t.peers[key] = p
	}
	return p
}

func (t *Transport) processPacket(addr *net.UDPAddr, header Header, payload []byte) {
	t.mu.Lock()
	peer := t.ensurePeerLocked(addr)
	t.mu.Unlock()

	peer.mu.Lock()
	peer.lastHeard = time.Now()
	t.handleAck(peer, header.Ack, header.AckBits)

	drop := false
	if peer.recv.hasLastSeq {
		if !isSeqNewer(header.Seq, peer.recv.lastSeq) {
			diff := peer.recv.lastSeq - header.Seq
			if diff == 0 || hasReceived(&peer.recv, header.Seq) {
				drop = true
				t.dupDropped.Add(1)
				t.logDrop("dup", addr, header.Seq)
			} else if diff > windowBits {
				drop = true
				t.oldDropped.Add(1)
				t.logDrop("old", addr, header.Seq)
			}
		}
	}
	var handler ReceiveHandler
	if !drop {
		updateReceiveState(&peer.recv, header.Seq)
		t.mu.Lock()
		handler = t.handler
		t.mu.Unlock()
	}
	peer.mu.Unlock()

	if !drop && handler != nil {
		handler(addr, header.Tag, payload)
	}
}

func (t *Transport) handleAck(peer *peerState, ack uint16, ackBits uint32) {
	for seq, pending := range peer.pending {
		if isSeqAcked(pending.seq, ack, ackBits) {
			delete(peer.pending, seq)
		}
	}
}

// Send enqueues a datagram to addr. If reliable and the peer's send window
// is full, the send is dropped and ErrSendWindowFull is returned after the
// drop counter is incremented — callers are expected to treat this as
// non-fatal backpressure, not a hard failure.
func (t *Transport) Send(addr *net.UDPAddr, tag uint8, payload []byte, reliable bool) error {
	if !t.running.Load() {
		return ErrClosed
	}
	now := time.Now()

	t.mu.Lock()
	peer := t.ensurePeerLocked(addr)
	t.mu.Unlock()

	peer.mu.Lock()
	if reliable && len(peer.pending) >= SendWindow {
		peer.mu.Unlock()
		t.winDropped.Add(1)
		t.logDrop("window", addr, 0)
		return ErrSendWindowFull
	}
	seq := peer.nextSendSeq
	peer.nextSendSeq++
	header := t.composeHeaderLocked(peer, seq, tag)
	if reliable {
		peer.pending[seq] = &pendingPacket{
			seq:       seq,
			tag:       tag,
			payload:   payload,
			firstSent: now,
			lastSent:  now,
			nextSend:  now.Add(backoffFor(0)),
			retries:   0,
		}
	}
	peer.mu.Unlock()

	buf := append(encodeHeader(header), payload...)
	_, err := t.conn.WriteToUDP(buf, addr)
	if err != nil {
		logger.Warn("transport: send error to %s: %v", addr, err)
	}
	return nil
}

func (t *Transport) composeHeaderLocked(peer *peerState, seq uint16, tag uint8) Header {
	h := Header{Seq: seq, Tag: tag}
	if peer.recv.hasLastSeq {
		h.Ack = peer.recv.lastSeq
		h.AckBits = peer.recv.ackBits
	}
	return h
}

// Update drives retransmission of pending reliable packets; callers must
// invoke this at least once per tick.
func (t *Transport) Update() {
	now := time.Now()

	t.mu.Lock()
	peers := make([]*peerState, 0, len(t.peers))
	for _, p := range t.peers {
		peers = append(peers, p)
	}
	t.mu.Unlock()

	for _, peer := range peers {
		type resend struct {
			header  Header
			payload []byte
		}
		var resends []resend

		peer.mu.Lock()
		for seq, pending := range peer.pending {
			ttlExpired := now.Sub(pending.firstSent) >= TTL
			retriesExceeded := pending.retries >= MaxRetries
			if ttlExpired || retriesExceeded {
				delete(peer.pending, seq)
				t.timeouts.Add(1)
				if t.metricsEnabled.Load() {
					logger.Debug("transport: reliable timeout", logger.Fields{"seq": seq, "peer": peer.addr.String()})
				}
				continue
			}
			if !pending.nextSend.After(now) {
				header := t.composeHeaderLocked(peer, pending.seq, pending.tag)
				resends = append(resends, resend{header: header, payload: pending.payload})
				pending.lastSent = now
				pending.retries++
				pending.nextSend = now.Add(backoffFor(pending.retries))
				t.retries.Add(1)
				if t.metricsEnabled.Load() {
					logger.Debug("transport: retransmit", logger.Fields{"seq": pending.seq, "retries": pending.retries, "peer": peer.addr.String()})
				}
			}
		}
		addr := peer.addr
		peer.mu.Unlock()

		for _, r := range resends {
			buf := append(encodeHeader(r.header), r.payload...)
			_, _ = t.conn.WriteToUDP(buf, addr)
		}
	}
}

// SampleCounters returns a snapshot of the transport's fault/retry counters.
func (t *Transport) SampleCounters() Counters {
	return Counters{
		ReliableRetriesTotal:   t.retries.Load(),
		ReliableTimeoutsTotal:  t.timeouts.Load(),
		DroppedDuplicatesTotal: t.dupDropped.Load(),
		DroppedOldTotal:        t.oldDropped.Load(),
		DroppedWindowTotal:     t.winDropped.Load(),
	}
}

func (t *Transport) logDrop(reason string, addr *net.UDPAddr, seq uint16) {
	if !t.metricsEnabled.Load() {
		return
	}
	logger.Debug("transport: drop", logger.Fields{"reason": reason, "seq": seq, "peer": addr.String()})
}
