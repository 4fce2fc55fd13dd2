// File: dgrdma/receive.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Inbound frame processing for one connection.

package dgrdma

import (
	"github.com/momentics/hioload-dgrdma/protocol"
)

// processFrame applies one inbound frame. Anomalies are logged and abort
// the rest of the frame; effects of earlier messages stand.
func (x *XferServices) processFrame(h protocol.FrameHeader, frame []byte) {
	x.mu.Lock()
	if h.HasMessages() {
		// duplicates are acknowledged again in case our ACK was lost
		x.pendingAcks.Add(h.FrameSeq)
		x.engine.notify(evAckPending)
	}
	if !x.dups.Check(h.FrameSeq) {
		x.mu.Unlock()
		x.metrics.DuplicateFrames.Inc()
		x.log.Debug().Uint16("seq", h.FrameSeq).Msg("duplicate frame dropped")
		return
	}
	if h.AckCount > 0 {
		x.reportAcks(h.AckStart, h.AckCount)
	}
	x.mu.Unlock()

	x.metrics.FramesReceived.Inc()
	if !h.HasMessages() {
		return
	}

	region := x.local.region
	off := protocol.FrameHeaderLength
	for {
		off = protocol.Align(off)
		if off+protocol.MsgHeaderLength > len(frame) {
			x.truncated(h, off, "message header")
			return
		}
		m := protocol.DecodeMsgHeader(frame[off:])
		off += protocol.MsgHeaderLength
		end := off + int(m.DataLen)
		if end > len(frame) {
			x.truncated(h, off, "message payload")
			return
		}
		if m.DataLen != 0 {
			dst, err := region.Map(m.DataAddr, uint32(m.DataLen))
			if err != nil {
				x.log.Warn().Err(err).
					Uint16("seq", h.FrameSeq).
					Uint32("txn", m.TxnID).
					Msg("message outside local arena, rest of frame dropped")
				return
			}
			copy(dst, frame[off:end])
		}
		off = end
		x.metrics.MessagesApplied.Inc()

		if x.endOfTxn(&m) && m.HasDoorbell() {
			if err := region.StoreFlag(m.FlagAddr, m.FlagValue); err != nil {
				x.log.Warn().Err(err).
					Uint32("txn", m.TxnID).
					Uint32("flag_addr", m.FlagAddr).
					Msg("doorbell write failed")
			}
		}
		if m.HasNextMsg == 0 {
			return
		}
	}
}

// endOfTxn accounts for one received message and reports whether it ends
// its transaction. On the last one m carries the doorbell recorded from the
// first fragment seen.
func (x *XferServices) endOfTxn(m *protocol.MsgHeader) bool {
	if m.NumMsgsInTxn < 2 {
		return true
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	rec, ok := x.rxTxns[m.TxnID]
	if !ok {
		rec = &rxTxn{
			total:     m.NumMsgsInTxn,
			remaining: m.NumMsgsInTxn,
			flagAddr:  m.FlagAddr,
			flagValue: m.FlagValue,
		}
		x.rxTxns[m.TxnID] = rec
	} else if rec.total != m.NumMsgsInTxn || rec.flagAddr != m.FlagAddr || rec.flagValue != m.FlagValue {
		x.log.Warn().
			Uint32("txn", m.TxnID).
			Uint16("total", rec.total).Uint16("got_total", m.NumMsgsInTxn).
			Uint32("flag_addr", rec.flagAddr).Uint32("got_flag_addr", m.FlagAddr).
			Uint32("flag_value", rec.flagValue).Uint32("got_flag_value", m.FlagValue).
			Msg("inconsistent transaction fragment")
	}
	rec.remaining--
	if rec.remaining > 0 {
		return false
	}
	delete(x.rxTxns, m.TxnID)
	m.FlagAddr, m.FlagValue = rec.flagAddr, rec.flagValue
	return true
}

func (x *XferServices) truncated(h protocol.FrameHeader, off int, what string) {
	x.metrics.TruncatedFrames.Inc()
	x.log.Warn().
		Uint16("seq", h.FrameSeq).
		Int("offset", off).
		Str("part", what).
		Msg("truncated frame, rest dropped")
}
