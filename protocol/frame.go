// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Frame and message header types of the datagram RDMA protocol.
//
// A frame is FrameHeader followed by zero or more messages, each padded to
// MessageAlignment and made of a MsgHeader plus data_len payload bytes.

package protocol

// FrameHeader is the 10 byte header opening every frame.
type FrameHeader struct {
	DstID    uint16 // destination mailbox
	SrcID    uint16 // source mailbox
	FrameSeq uint16
	AckStart uint16 // first acknowledged frame_seq
	AckCount uint8  // length of the acknowledged run; 0 carries no ACK
	Flags    uint8
}

// HasMessages reports whether the frame carries message payload.
func (h *FrameHeader) HasMessages() bool { return h.Flags&FlagHasMessages != 0 }

// Acks returns the acknowledged sequence numbers, wrapping at 16 bits.
func (h *FrameHeader) Acks() []uint16 {
	if h.AckCount == 0 {
		return nil
	}
	out := make([]uint16, h.AckCount)
	for i := range out {
		out[i] = h.AckStart + uint16(i)
	}
	return out
}

// MsgHeader is the 24 byte header of one transaction fragment.
type MsgHeader struct {
	TxnID        uint32
	FlagAddr     uint32
	FlagValue    uint32
	NumMsgsInTxn uint16 // 0 for flag-only transactions
	MsgSeq       uint16
	DataAddr     uint32
	DataLen      uint16
	MsgType      uint8
	HasNextMsg   uint8
}

// HasDoorbell reports whether the message names a doorbell write. Only the
// NoFlag pair in both fields suppresses it.
func (m *MsgHeader) HasDoorbell() bool {
	return m.FlagAddr != NoFlag || m.FlagValue != NoFlag
}

// Align rounds n up to the message alignment boundary.
func Align(n int) int {
	return (n + MessageAlignment - 1) &^ (MessageAlignment - 1)
}

// PadLength returns the number of pad bytes needed to align offset.
func PadLength(offset int) int {
	return Align(offset) - offset
}

// RoundUp rounds n up to a multiple of align (power of two).
func RoundUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// RoundDown rounds n down to a multiple of align (power of two).
func RoundDown(n, align int) int {
	return n &^ (align - 1)
}
