// File: protocol/frame_codec.go
// Package protocol implements the fixed-layout header codecs.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// All fields are little-endian and packed; no padding is inserted by the codec.
// Decode functions read exactly the header length without bounds checks, so
// callers verify the remaining length first.

package protocol

import "encoding/binary"

var le = binary.LittleEndian

// Encode writes the header into dst[:FrameHeaderLength].
func (h *FrameHeader) Encode(dst []byte) {
	_ = dst[FrameHeaderLength-1]
	le.PutUint16(dst[0:2], h.DstID)
	le.PutUint16(dst[2:4], h.SrcID)
	le.PutUint16(dst[4:6], h.FrameSeq)
	le.PutUint16(dst[6:8], h.AckStart)
	dst[8] = h.AckCount
	dst[9] = h.Flags
}

// DecodeFrameHeader parses FrameHeaderLength bytes from src.
func DecodeFrameHeader(src []byte) FrameHeader {
	_ = src[FrameHeaderLength-1]
	return FrameHeader{
		DstID:    le.Uint16(src[0:2]),
		SrcID:    le.Uint16(src[2:4]),
		FrameSeq: le.Uint16(src[4:6]),
		AckStart: le.Uint16(src[6:8]),
		AckCount: src[8],
		Flags:    src[9],
	}
}

// Encode writes the header into dst[:MsgHeaderLength].
func (m *MsgHeader) Encode(dst []byte) {
	_ = dst[MsgHeaderLength-1]
	le.PutUint32(dst[0:4], m.TxnID)
	le.PutUint32(dst[4:8], m.FlagAddr)
	le.PutUint32(dst[8:12], m.FlagValue)
	le.PutUint16(dst[12:14], m.NumMsgsInTxn)
	le.PutUint16(dst[14:16], m.MsgSeq)
	le.PutUint32(dst[16:20], m.DataAddr)
	le.PutUint16(dst[20:22], m.DataLen)
	dst[22] = m.MsgType
	dst[23] = m.HasNextMsg
}

// DecodeMsgHeader parses MsgHeaderLength bytes from src.
func DecodeMsgHeader(src []byte) MsgHeader {
	_ = src[MsgHeaderLength-1]
	return MsgHeader{
		TxnID:        le.Uint32(src[0:4]),
		FlagAddr:     le.Uint32(src[4:8]),
		FlagValue:    le.Uint32(src[8:12]),
		NumMsgsInTxn: le.Uint16(src[12:14]),
		MsgSeq:       le.Uint16(src[14:16]),
		DataAddr:     le.Uint32(src[16:20]),
		DataLen:      le.Uint16(src[20:22]),
		MsgType:      src[22],
		HasNextMsg:   src[23],
	}
}
