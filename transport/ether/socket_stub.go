//go:build !linux
// +build !linux

// transport/ether/socket_stub.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ether

import (
	"net"
	"time"

	"github.com/momentics/hioload-dgrdma/api"
)

// Socket is unavailable without AF_PACKET.
type Socket struct{}

var _ api.Socket = (*Socket)(nil)

// Open always fails on this platform.
func Open(ifname string, mtu int) (*Socket, error) {
	return nil, api.SetupError("raw ethernet sockets require linux", api.ErrNotSupported).WithContext("iface", ifname)
}

func (*Socket) Send(net.HardwareAddr, [][]byte) error { return api.ErrNotSupported }
func (*Socket) Receive([]byte, time.Duration) (int, net.HardwareAddr, error) {
	return 0, nil, api.ErrNotSupported
}
func (*Socket) MTU() int                       { return 0 }
func (*Socket) HardwareAddr() net.HardwareAddr { return nil }
func (*Socket) Interface() string              { return "" }
func (*Socket) Close() error                   { return nil }
