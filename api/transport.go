// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the raw frame socket abstraction used by the datagram transport.
// Implementations move whole link-layer payloads; they never fragment.

package api

import (
	"net"
	"time"
)

// Socket sends and receives raw link-layer frames on one interface.
type Socket interface {
	// Send transmits one frame built from the scatter/gather list to dst.
	Send(dst net.HardwareAddr, buffers [][]byte) error

	// Receive blocks up to timeout for one frame addressed to this host and
	// copies its payload into buf. Returns ErrTimeout when nothing arrived.
	Receive(buf []byte, timeout time.Duration) (n int, src net.HardwareAddr, err error)

	// MTU returns the largest payload a single frame can carry.
	MTU() int

	// HardwareAddr returns the local link-layer address.
	HardwareAddr() net.HardwareAddr

	// Interface returns the name of the bound interface.
	Interface() string

	// Close releases the socket; pending Receive calls return ErrTransportClosed.
	Close() error
}
