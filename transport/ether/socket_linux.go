//go:build linux
// +build linux

// transport/ether/socket_linux.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// AF_PACKET raw socket with scatter/gather sends via SendmsgBuffers.

package ether

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-dgrdma/api"
	"github.com/momentics/hioload-dgrdma/protocol"
)

// Socket is a raw Ethernet socket bound to one interface.
type Socket struct {
	fd     int
	link   Link
	mtu    int
	closed atomic.Bool
	// held shared around syscalls on fd; Close takes it exclusively
	fdMu sync.RWMutex

	// receive side is driven by a single goroutine
	rbuf    []byte
	timeout time.Duration

	sendMu sync.Mutex
	hdr    [HeaderLength]byte
}

var _ api.Socket = (*Socket)(nil)

// Open binds a raw socket on ifname. A non-zero mtu overrides the interface MTU.
func Open(ifname string, mtu int) (*Socket, error) {
	link, err := Lookup(ifname)
	if err != nil {
		return nil, err
	}
	proto := htons(protocol.EtherType)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(proto))
	if err != nil {
		return nil, api.SetupError("socket create", err).WithContext("iface", ifname)
	}
	if err := unix.Bind(fd, &unix.SockaddrLinklayer{Protocol: proto, Ifindex: link.Index}); err != nil {
		unix.Close(fd)
		return nil, api.SetupError("socket bind", err).WithContext("iface", ifname)
	}
	if mtu == 0 || mtu > link.MTU {
		mtu = link.MTU
	}
	return &Socket{
		fd:   fd,
		link: link,
		mtu:  mtu,
		rbuf: make([]byte, HeaderLength+link.MTU),
	}, nil
}

// Send writes one frame: the Ethernet header followed by buffers.
func (s *Socket) Send(dst net.HardwareAddr, buffers [][]byte) error {
	if s.closed.Load() {
		return api.ErrTransportClosed
	}
	if len(dst) != 6 {
		return fmt.Errorf("destination %v: %w", dst, api.ErrInvalidArgument)
	}
	to := &unix.SockaddrLinklayer{
		Protocol: htons(protocol.EtherType),
		Ifindex:  s.link.Index,
		Halen:    6,
	}
	copy(to.Addr[:], dst)

	s.fdMu.RLock()
	defer s.fdMu.RUnlock()
	if s.closed.Load() {
		return api.ErrTransportClosed
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := PutHeader(s.hdr[:], dst, s.link.HardwareAddr); err != nil {
		return err
	}
	iov := make([][]byte, 0, len(buffers)+1)
	iov = append(iov, s.hdr[:])
	iov = append(iov, buffers...)
	if _, err := unix.SendmsgBuffers(s.fd, iov, nil, to, 0); err != nil {
		return fmt.Errorf("SendmsgBuffers: %w", err)
	}
	return nil
}

// Receive waits up to timeout for a frame addressed to this host.
func (s *Socket) Receive(buf []byte, timeout time.Duration) (int, net.HardwareAddr, error) {
	s.fdMu.RLock()
	defer s.fdMu.RUnlock()
	if s.closed.Load() {
		return 0, nil, api.ErrTransportClosed
	}
	if err := s.setTimeout(timeout); err != nil {
		return 0, nil, err
	}
	deadline := time.Now().Add(timeout)
	for {
		if s.closed.Load() {
			return 0, nil, api.ErrTransportClosed
		}
		n, from, err := unix.Recvfrom(s.fd, s.rbuf, 0)
		switch {
		case err == nil:
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EWOULDBLOCK):
			return 0, nil, api.ErrTimeout
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EBADF):
			return 0, nil, api.ErrTransportClosed
		default:
			return 0, nil, fmt.Errorf("recvfrom: %w", err)
		}
		if ll, ok := from.(*unix.SockaddrLinklayer); ok && ll.Pkttype != unix.PACKET_HOST {
			if time.Now().After(deadline) {
				return 0, nil, api.ErrTimeout
			}
			continue
		}
		payload, src, ok := ParseFrame(s.rbuf[:n])
		if !ok {
			if time.Now().After(deadline) {
				return 0, nil, api.ErrTimeout
			}
			continue
		}
		return copy(buf, payload), src, nil
	}
}

func (s *Socket) setTimeout(d time.Duration) error {
	if d == s.timeout {
		return nil
	}
	tv := unix.NsecToTimeval(d.Nanoseconds())
	if err := unix.SetsockoptTimeval(s.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return fmt.Errorf("SO_RCVTIMEO: %w", err)
	}
	s.timeout = d
	return nil
}

// MTU returns the largest datagram RDMA frame this socket carries.
func (s *Socket) MTU() int { return s.mtu }

// HardwareAddr returns the interface MAC address.
func (s *Socket) HardwareAddr() net.HardwareAddr { return s.link.HardwareAddr }

// Interface returns the bound interface name.
func (s *Socket) Interface() string { return s.link.Name }

// Close closes the socket. It waits for a Receive in progress to return,
// at most one receive timeout, so the descriptor is never reused under it.
func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.fdMu.Lock()
	defer s.fdMu.Unlock()
	return unix.Close(s.fd)
}

func htons(v uint16) uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return binary.NativeEndian.Uint16(b[:])
}
