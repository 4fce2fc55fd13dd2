// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package ether

import (
	"net"

	"github.com/soypat/lneto/ethernet"

	"github.com/momentics/hioload-dgrdma/protocol"
)

// HeaderLength is the size of an untagged Ethernet II header.
const HeaderLength = 14

// PutHeader writes an Ethernet II header for a datagram RDMA frame.
func PutHeader(dst []byte, to, from net.HardwareAddr) error {
	efrm, err := ethernet.NewFrame(dst[:HeaderLength])
	if err != nil {
		return err
	}
	copy(efrm.DestinationHardwareAddr()[:], to)
	copy(efrm.SourceHardwareAddr()[:], from)
	efrm.SetEtherType(ethernet.Type(protocol.EtherType))
	return nil
}

// ParseFrame validates a captured Ethernet frame and returns its datagram
// RDMA payload and source address. ok is false for foreign EtherTypes.
func ParseFrame(raw []byte) (payload []byte, src net.HardwareAddr, ok bool) {
	efrm, err := ethernet.NewFrame(raw)
	if err != nil {
		return nil, nil, false
	}
	if efrm.EtherTypeOrSize() != ethernet.Type(protocol.EtherType) {
		return nil, nil, false
	}
	src = make(net.HardwareAddr, 6)
	copy(src, efrm.SourceHardwareAddr()[:])
	return raw[HeaderLength:], src, true
}
