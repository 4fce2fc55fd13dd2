// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameHeaderLayout(t *testing.T) {
	h := FrameHeader{DstID: 0x0102, SrcID: 0x0304, FrameSeq: 0x0506, AckStart: 0x0708, AckCount: 0x09, Flags: FlagHasMessages}
	buf := make([]byte, FrameHeaderLength)
	h.Encode(buf)
	assert.Equal(t, []byte{0x02, 0x01, 0x04, 0x03, 0x06, 0x05, 0x08, 0x07, 0x09, 0x01}, buf)
	assert.Equal(t, h, DecodeFrameHeader(buf))
}

func TestMsgHeaderLayout(t *testing.T) {
	m := MsgHeader{
		TxnID:        0x11223344,
		FlagAddr:     0x1000,
		FlagValue:    3,
		NumMsgsInTxn: 2,
		MsgSeq:       1,
		DataAddr:     0xdeadbeef,
		DataLen:      0x05dc,
		MsgType:      MsgTypeWrite,
		HasNextMsg:   1,
	}
	buf := make([]byte, MsgHeaderLength)
	m.Encode(buf)
	want := []byte{
		0x44, 0x33, 0x22, 0x11,
		0x00, 0x10, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00,
		0x02, 0x00,
		0x01, 0x00,
		0xef, 0xbe, 0xad, 0xde,
		0xdc, 0x05,
		0x01,
		0x01,
	}
	require.Equal(t, want, buf)
	assert.Equal(t, m, DecodeMsgHeader(buf))
}

func TestAcksWrap(t *testing.T) {
	h := FrameHeader{AckStart: 0xfffe, AckCount: 3}
	assert.Equal(t, []uint16{0xfffe, 0xffff, 0x0000}, h.Acks())
	assert.Nil(t, (&FrameHeader{}).Acks())
}

func TestAlignmentHelpers(t *testing.T) {
	assert.Equal(t, 16, Align(FrameHeaderLength))
	assert.Equal(t, 6, PadLength(FrameHeaderLength))
	assert.Equal(t, 0, PadLength(40))
	assert.Equal(t, 1460, RoundUp(1457, FinalFragmentAlign))
	assert.Equal(t, 1456, RoundDown(1460, InteriorFragmentAlign))
	assert.True(t, (&MsgHeader{FlagAddr: 0x1000}).HasDoorbell())
	assert.True(t, (&MsgHeader{FlagAddr: 0x1000, FlagValue: NoFlag}).HasDoorbell())
	assert.True(t, (&MsgHeader{FlagAddr: NoFlag, FlagValue: 7}).HasDoorbell())
	assert.False(t, (&MsgHeader{FlagAddr: NoFlag, FlagValue: NoFlag}).HasDoorbell())
}
