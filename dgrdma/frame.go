// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package dgrdma

import (
	"time"

	"github.com/momentics/hioload-dgrdma/protocol"
)

// zeros backs alignment and tail padding in the send vector.
var zeros [protocol.InteriorFragmentAlign]byte

// transaction is one posted transfer: data followed by an optional doorbell.
type transaction struct {
	id        uint32
	src       []byte // nil for flag-only transfers
	dstAddr   uint32
	flagAddr  uint32
	flagValue uint32
	done      *Completion
}

// outMsg is one fragment of a transaction.
type outMsg struct {
	hdr  protocol.MsgHeader
	data []byte // may be shorter than hdr.DataLen; the rest is zero padding
	done *Completion
	wire [protocol.MsgHeaderLength]byte
}

func resetMsg(m *outMsg) { *m = outMsg{} }

// outFrame is a frame being filled, in flight or awaiting an ACK.
type outFrame struct {
	hdr      protocol.FrameHeader
	msgs     []*outMsg
	used     int // bytes including the frame header
	coalesce time.Time
	deadline time.Time
	sends    int
	wire     [protocol.FrameHeaderLength]byte
	iov      [][]byte
}

func resetFrame(f *outFrame) {
	msgs, iov := f.msgs[:0], f.iov[:0]
	*f = outFrame{msgs: msgs, iov: iov, used: protocol.FrameHeaderLength}
}

// space returns the room left for the next message, header included.
func (f *outFrame) space(mtu int) int {
	return mtu - protocol.Align(f.used)
}

func (f *outFrame) fits(m *outMsg, mtu int) bool {
	return protocol.MsgHeaderLength+int(m.hdr.DataLen) <= f.space(mtu)
}

func (f *outFrame) add(m *outMsg) {
	if n := len(f.msgs); n > 0 {
		f.msgs[n-1].hdr.HasNextMsg = 1
	}
	m.hdr.HasNextMsg = 0
	f.used = protocol.Align(f.used) + protocol.MsgHeaderLength + int(m.hdr.DataLen)
	f.msgs = append(f.msgs, m)
}

// vector encodes the headers and returns the scatter/gather list for Send.
func (f *outFrame) vector() [][]byte {
	f.hdr.Encode(f.wire[:])
	f.iov = append(f.iov[:0], f.wire[:])
	off := protocol.FrameHeaderLength
	for _, m := range f.msgs {
		if pad := protocol.PadLength(off); pad > 0 {
			f.iov = append(f.iov, zeros[:pad])
			off += pad
		}
		m.hdr.Encode(m.wire[:])
		f.iov = append(f.iov, m.wire[:])
		if len(m.data) > 0 {
			f.iov = append(f.iov, m.data)
		}
		if tail := int(m.hdr.DataLen) - len(m.data); tail > 0 {
			f.iov = append(f.iov, zeros[:tail])
		}
		off += protocol.MsgHeaderLength + int(m.hdr.DataLen)
	}
	return f.iov
}

// fullSpace is the room for messages in an empty frame.
func fullSpace(mtu int) int {
	return mtu - protocol.Align(protocol.FrameHeaderLength)
}

// MinMTU fits one message header and the smallest interior fragment.
const MinMTU = (protocol.FrameHeaderLength+protocol.MessageAlignment-1)&^(protocol.MessageAlignment-1) +
	protocol.MsgHeaderLength + protocol.InteriorFragmentAlign
