// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Datagram RDMA wire protocol constants

package protocol

const (
	// Fixed header sizes on the wire
	FrameHeaderLength = 10
	MsgHeaderLength   = 24

	// Every message header starts on this boundary, measured from the first
	// byte of the frame header.
	MessageAlignment = 8

	// Frame flag bits
	FlagHasMessages uint8 = 0x01

	// Message types
	MsgTypeWrite uint8 = 0x01

	// NoFlag in both flag_addr and flag_value means no doorbell write.
	NoFlag uint32 = 0xffffffff

	// MaxAckCount bounds the ACK run one frame header can carry.
	MaxAckCount = 0xff

	// EtherType carried by every datagram RDMA frame.
	EtherType uint16 = 0xf040

	// Sender-side data_len alignment contracts.
	FinalFragmentAlign    = 4
	InteriorFragmentAlign = 16
)
