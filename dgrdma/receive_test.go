package dgrdma

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-dgrdma/api"
	"github.com/momentics/hioload-dgrdma/fake"
	"github.com/momentics/hioload-dgrdma/protocol"
)

func dataHeader(seq uint16) protocol.FrameHeader {
	return protocol.FrameHeader{DstID: 0, SrcID: 1, FrameSeq: seq, Flags: protocol.FlagHasMessages}
}

func process(x *XferServices, h protocol.FrameHeader, msgs []protocol.MsgHeader, payloads [][]byte) {
	x.processFrame(h, buildFrame(h, msgs, payloads))
}

func TestReceiveFlagOnly(t *testing.T) {
	x, p := detached(t, nil)
	process(x, dataHeader(0), []protocol.MsgHeader{{
		TxnID: 1, FlagAddr: 0x1000, FlagValue: 3, MsgType: protocol.MsgTypeWrite,
	}}, [][]byte{nil})

	assert.Equal(t, []fake.FlagStore{{Offset: 0x1000, Value: 3, Writes: 0}}, p.region.Flags())
	assert.Zero(t, p.region.Maps(), "no data copy")
	v, err := p.region.LoadFlag(0x1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), v)
}

func TestReceiveDuplicateIsDroppedButAcked(t *testing.T) {
	x, p := detached(t, nil)
	h := dataHeader(7)
	msgs := []protocol.MsgHeader{{TxnID: 1, FlagAddr: 0x10, FlagValue: 1, DataAddr: 0x100, DataLen: 4, NumMsgsInTxn: 1}}
	payload := [][]byte{{1, 2, 3, 4}}

	process(x, h, msgs, payload)
	process(x, h, msgs, payload)

	assert.Len(t, p.region.Flags(), 1, "doorbell written once")
	assert.Equal(t, 1.0, testutil.ToFloat64(x.metrics.DuplicateFrames))
	assert.Equal(t, 2, x.pendingAcks.Length())
}

func TestReceiveAckOnlyFrame(t *testing.T) {
	x, _ := detached(t, nil)
	x.inflight[4] = struct{}{}
	x.inflight[5] = struct{}{}

	process(x, protocol.FrameHeader{DstID: 0, SrcID: 1, FrameSeq: 0, AckStart: 4, AckCount: 3}, nil, nil)

	assert.Equal(t, map[uint16]struct{}{4: {}, 5: {}}, x.acked, "ACK for seq 6 is stale")
	assert.Zero(t, x.pendingAcks.Length(), "ACK-only frames are not acknowledged")
	assert.NotZero(t, x.engine.events.Load()&uint32(evAckReceived))
}

func TestReceiveMultiMessageTransaction(t *testing.T) {
	x, p := detached(t, nil)
	base := protocol.MsgHeader{TxnID: 5, FlagAddr: 0x20, FlagValue: 0xabc, NumMsgsInTxn: 3, MsgType: protocol.MsgTypeWrite}
	frag := func(seq uint16, addr uint32, n uint16) protocol.MsgHeader {
		m := base
		m.MsgSeq, m.DataAddr, m.DataLen = seq, addr, n
		return m
	}
	chunk := func(b byte, n int) []byte {
		out := make([]byte, n)
		for i := range out {
			out[i] = b
		}
		return out
	}

	process(x, dataHeader(0), []protocol.MsgHeader{frag(0, 0x100, 16)}, [][]byte{chunk(1, 16)})
	assert.Empty(t, p.region.Flags())
	require.Contains(t, x.rxTxns, uint32(5))
	assert.Equal(t, uint16(2), x.rxTxns[5].remaining)

	m1, m2 := frag(1, 0x110, 16), frag(2, 0x120, 8)
	m1.HasNextMsg = 1
	process(x, dataHeader(1), []protocol.MsgHeader{m1, m2}, [][]byte{chunk(2, 16), chunk(3, 8)})

	assert.NotContains(t, x.rxTxns, uint32(5))
	assert.Equal(t, []fake.FlagStore{{Offset: 0x20, Value: 0xabc, Writes: 3}}, p.region.Flags(), "doorbell after all data")
	got, err := p.region.Map(0x100, 40)
	require.NoError(t, err)
	assert.Equal(t, append(append(chunk(1, 16), chunk(2, 16)...), chunk(3, 8)...), got)
	assert.Equal(t, 3.0, testutil.ToFloat64(x.metrics.MessagesApplied))
}

func TestReceiveMismatchedFragmentKeepsOriginalRecord(t *testing.T) {
	x, p := detached(t, nil)
	m0 := protocol.MsgHeader{TxnID: 9, FlagAddr: 0x40, FlagValue: 1, NumMsgsInTxn: 2, DataAddr: 0x200, DataLen: 4}
	m1 := m0
	m1.MsgSeq, m1.DataAddr, m1.FlagValue = 1, 0x204, 2

	process(x, dataHeader(0), []protocol.MsgHeader{m0}, [][]byte{{1, 1, 1, 1}})
	process(x, dataHeader(1), []protocol.MsgHeader{m1}, [][]byte{{2, 2, 2, 2}})

	assert.Equal(t, 1, p.logs.count("inconsistent transaction fragment"))
	got, err := p.region.Map(0x200, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 1, 1, 1, 2, 2, 2, 2}, got, "both fragments applied")
	require.Len(t, p.region.Flags(), 1)
	assert.Equal(t, uint32(1), p.region.Flags()[0].Value, "original flag value wins")
}

func TestReceiveTruncatedFrameKeepsEarlierMessages(t *testing.T) {
	x, p := detached(t, nil)
	m0 := protocol.MsgHeader{TxnID: 1, FlagAddr: 0x10, FlagValue: 1, NumMsgsInTxn: 1, DataAddr: 0x100, DataLen: 4, HasNextMsg: 1}
	m1 := protocol.MsgHeader{TxnID: 2, FlagAddr: 0x14, FlagValue: 2, NumMsgsInTxn: 1, DataAddr: 0x200, DataLen: 64}
	h := dataHeader(0)
	raw := buildFrame(h, []protocol.MsgHeader{m0, m1}, [][]byte{{9, 9, 9, 9}, make([]byte, 64)})

	x.processFrame(h, raw[:len(raw)-10])

	require.Len(t, p.region.Flags(), 1)
	assert.Equal(t, uint32(0x10), p.region.Flags()[0].Offset)
	assert.Equal(t, 1.0, testutil.ToFloat64(x.metrics.TruncatedFrames))
	assert.Equal(t, 1, p.logs.count("truncated frame"))

	// a frame too short for its first message header
	h2 := dataHeader(1)
	x.processFrame(h2, buildFrame(h2, nil, nil))
	assert.Equal(t, 2.0, testutil.ToFloat64(x.metrics.TruncatedFrames))
}

func TestReceiveMapErrorAbortsFrame(t *testing.T) {
	x, p := detached(t, nil)
	p.region.FailMapAt(0x300, api.ErrOutOfRange)
	m0 := protocol.MsgHeader{TxnID: 1, FlagAddr: 0x10, FlagValue: 1, NumMsgsInTxn: 1, DataAddr: 0x300, DataLen: 4, HasNextMsg: 1}
	m1 := protocol.MsgHeader{TxnID: 2, FlagAddr: 0x14, FlagValue: 2, NumMsgsInTxn: 1, DataAddr: 0x400, DataLen: 4}

	process(x, dataHeader(0), []protocol.MsgHeader{m0, m1}, [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}})

	assert.Empty(t, p.region.Flags())
	assert.Equal(t, 1, p.logs.count("outside local arena"))
}

func TestReceiveWithoutDoorbell(t *testing.T) {
	x, p := detached(t, nil)
	process(x, dataHeader(0), []protocol.MsgHeader{{
		TxnID: 1, FlagAddr: protocol.NoFlag, FlagValue: protocol.NoFlag, NumMsgsInTxn: 1, DataAddr: 0x80, DataLen: 4,
	}}, [][]byte{{4, 3, 2, 1}})

	assert.Empty(t, p.region.Flags())
	got, err := p.region.Map(0x80, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 3, 2, 1}, got)
}

func TestReceiveDoorbellWithAllOnesValue(t *testing.T) {
	x, p := detached(t, nil)
	process(x, dataHeader(0), []protocol.MsgHeader{{
		TxnID: 1, FlagAddr: 0x40, FlagValue: protocol.NoFlag, NumMsgsInTxn: 1, DataAddr: 0x80, DataLen: 4,
	}}, [][]byte{{1, 1, 1, 1}})

	require.Len(t, p.region.Flags(), 1)
	assert.Equal(t, uint32(0x40), p.region.Flags()[0].Offset)
	assert.Equal(t, protocol.NoFlag, p.region.Flags()[0].Value)
}
