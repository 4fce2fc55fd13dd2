// Package fake
// Author: momentics <momentics@gmail.com>
//
// In-memory Ethernet segment. Frames are framed exactly as on the wire and
// delivered to every attached socket; sockets drop frames not addressed to
// them the way a NIC would.

package fake

import (
	"bytes"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-dgrdma/api"
	"github.com/momentics/hioload-dgrdma/pool"
	"github.com/momentics/hioload-dgrdma/transport/ether"
)

// FrameFilter inspects a datagram RDMA frame (without the Ethernet header).
// Returning true applies the filter's action to the frame.
type FrameFilter func(from, to net.HardwareAddr, frame []byte) bool

// DefaultInboxDepth is the per-socket receive queue length.
const DefaultInboxDepth = 1024

// Medium is a shared broadcast segment.
type Medium struct {
	mtu int

	mu       sync.Mutex
	sockets  []*Socket
	drop     FrameFilter
	dup      FrameFilter
	lossRate float64
	rnd      *rand.Rand

	frames *pool.SyncPool[[]byte]

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewMedium creates a segment carrying frames of up to mtu payload bytes.
func NewMedium(mtu int) *Medium {
	m := &Medium{
		mtu: mtu,
		rnd: rand.New(rand.NewPCG(1, 2)),
	}
	m.frames = pool.NewSyncPool(func() []byte {
		return make([]byte, 0, ether.HeaderLength+mtu)
	})
	return m
}

// Attach creates a socket on the segment.
func (m *Medium) Attach(ifname string, mac net.HardwareAddr) *Socket {
	s := &Socket{
		medium: m,
		ifname: ifname,
		mac:    append(net.HardwareAddr(nil), mac...),
		inbox:  make(chan []byte, DefaultInboxDepth),
		done:   make(chan struct{}),
	}
	m.mu.Lock()
	m.sockets = append(m.sockets, s)
	m.mu.Unlock()
	return s
}

// SetDropFilter installs a filter deciding which frames are lost.
func (m *Medium) SetDropFilter(f FrameFilter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drop = f
}

// SetDuplicateFilter installs a filter deciding which frames are delivered twice.
func (m *Medium) SetDuplicateFilter(f FrameFilter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dup = f
}

// SetLossRate drops frames at random with probability p, using seed for
// reproducible runs.
func (m *Medium) SetLossRate(p float64, seed uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lossRate = p
	m.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Delivered returns the number of frames handed to receivers.
func (m *Medium) Delivered() uint64 { return m.delivered.Load() }

// Dropped returns the number of frames lost by filters or random loss.
func (m *Medium) Dropped() uint64 { return m.dropped.Load() }

func (m *Medium) transmit(from *Socket, dst net.HardwareAddr, buffers [][]byte) error {
	raw := m.frames.Get()[:ether.HeaderLength]
	if err := ether.PutHeader(raw, dst, from.mac); err != nil {
		return err
	}
	for _, b := range buffers {
		raw = append(raw, b...)
	}
	if len(raw)-ether.HeaderLength > m.mtu {
		m.frames.Put(raw[:0])
		return api.NewError(api.ErrCodeInvalidArgument, "frame exceeds MTU").Wrap(api.ErrInvalidArgument).
			WithContext("len", len(raw)-ether.HeaderLength).
			WithContext("mtu", m.mtu)
	}
	payload := raw[ether.HeaderLength:]

	m.mu.Lock()
	lost := m.drop != nil && m.drop(from.mac, dst, payload)
	if !lost && m.lossRate > 0 && m.rnd.Float64() < m.lossRate {
		lost = true
	}
	copies := 1
	if !lost && m.dup != nil && m.dup(from.mac, dst, payload) {
		copies = 2
	}
	peers := make([]*Socket, 0, len(m.sockets))
	for _, s := range m.sockets {
		if s != from {
			peers = append(peers, s)
		}
	}
	m.mu.Unlock()

	if lost {
		m.dropped.Add(1)
		m.frames.Put(raw[:0])
		return nil
	}
	for i := 0; i < copies; i++ {
		for _, s := range peers {
			s.enqueue(raw)
		}
	}
	m.frames.Put(raw[:0])
	return nil
}

// Socket is one station on a Medium. It implements api.Socket.
type Socket struct {
	medium *Medium
	ifname string
	mac    net.HardwareAddr

	inbox     chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	sendErr error
	sent    [][]byte
	record  bool
}

var _ api.Socket = (*Socket)(nil)

func (s *Socket) enqueue(raw []byte) {
	frame := append([]byte(nil), raw...)
	select {
	case <-s.done:
	case s.inbox <- frame:
		s.medium.delivered.Add(1)
	default:
		// receiver overrun
		s.medium.dropped.Add(1)
	}
}

// Send implements api.Socket.Send.
func (s *Socket) Send(dst net.HardwareAddr, buffers [][]byte) error {
	select {
	case <-s.done:
		return api.ErrTransportClosed
	default:
	}
	s.mu.Lock()
	err := s.sendErr
	if err == nil && s.record {
		var frame []byte
		for _, b := range buffers {
			frame = append(frame, b...)
		}
		s.sent = append(s.sent, frame)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.medium.transmit(s, dst, buffers)
}

// Receive implements api.Socket.Receive.
func (s *Socket) Receive(buf []byte, timeout time.Duration) (int, net.HardwareAddr, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-s.done:
			return 0, nil, api.ErrTransportClosed
		case <-timer.C:
			return 0, nil, api.ErrTimeout
		case raw := <-s.inbox:
			if len(raw) < ether.HeaderLength {
				continue
			}
			// not PACKET_HOST
			if !bytes.Equal(raw[:6], s.mac) {
				continue
			}
			payload, src, ok := ether.ParseFrame(raw)
			if !ok {
				continue
			}
			return copy(buf, payload), src, nil
		}
	}
}

// MTU implements api.Socket.MTU.
func (s *Socket) MTU() int { return s.medium.mtu }

// HardwareAddr implements api.Socket.HardwareAddr.
func (s *Socket) HardwareAddr() net.HardwareAddr { return s.mac }

// Interface implements api.Socket.Interface.
func (s *Socket) Interface() string { return s.ifname }

// Close implements api.Socket.Close.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// SetSendError makes every following Send fail with err; nil clears it.
func (s *Socket) SetSendError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr = err
}

// RecordSent enables capture of outgoing frames for GetSentData.
func (s *Socket) RecordSent(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = on
}

// GetSentData returns copies of recorded outgoing frames.
func (s *Socket) GetSentData() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

// ClearSentData clears recorded outgoing frames.
func (s *Socket) ClearSentData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = s.sent[:0]
}

// Inject delivers a raw datagram RDMA frame to this socket as if sent by src.
func (s *Socket) Inject(src net.HardwareAddr, frame []byte) error {
	raw := make([]byte, ether.HeaderLength, ether.HeaderLength+len(frame))
	if err := ether.PutHeader(raw, s.mac, src); err != nil {
		return err
	}
	s.enqueue(append(raw, frame...))
	return nil
}
