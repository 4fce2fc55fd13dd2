// File: dgrdma/fragment.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Splits a transaction into messages sized to the frames that will carry them.
// The receiving hardware requires interior fragments to be multiples of 16
// bytes and the final fragment a multiple of 4.

package dgrdma

import (
	"github.com/momentics/hioload-dgrdma/pool"
	"github.com/momentics/hioload-dgrdma/protocol"
)

// planFragments returns the data_len of each fragment of a size-byte
// transfer. openSpace is the room left in the currently open frame (0 when
// none is open); full is the room in an empty frame.
func planFragments(size, openSpace, full int) []int {
	if size == 0 {
		return nil
	}
	var lens []int
	space := openSpace
	for remaining := size; remaining > 0; {
		budget := space - protocol.MsgHeaderLength
		if final := protocol.RoundUp(remaining, protocol.FinalFragmentAlign); final <= budget {
			lens = append(lens, final)
			break
		}
		n := protocol.RoundDown(budget, protocol.InteriorFragmentAlign)
		if n <= 0 {
			if space == full {
				// MTU below MinMTU; endpoints reject this at setup
				return nil
			}
			space = full
			continue
		}
		lens = append(lens, n)
		remaining -= n
		space = full
	}
	return lens
}

// fragmenter builds messages from a per-engine free list.
type fragmenter struct {
	msgs *pool.FreeList[outMsg]
	out  []*outMsg
}

func newFragmenter() *fragmenter {
	return &fragmenter{msgs: pool.NewFreeList(resetMsg)}
}

// fragment turns t into messages and arms its completion with their count.
// The returned slice is reused by the next call.
func (fr *fragmenter) fragment(t *transaction, openSpace, full int) []*outMsg {
	fr.out = fr.out[:0]
	base := protocol.MsgHeader{
		TxnID:     t.id,
		FlagAddr:  t.flagAddr,
		FlagValue: t.flagValue,
		MsgType:   protocol.MsgTypeWrite,
	}
	if len(t.src) == 0 {
		m := fr.msgs.Acquire()
		m.hdr = base
		m.hdr.DataAddr = t.dstAddr
		m.done = t.done
		fr.out = append(fr.out, m)
		t.done.reset(1)
		return fr.out
	}

	off := 0
	for i, n := range planFragments(len(t.src), openSpace, full) {
		m := fr.msgs.Acquire()
		m.hdr = base
		m.hdr.MsgSeq = uint16(i)
		m.hdr.DataAddr = t.dstAddr + uint32(off)
		m.hdr.DataLen = uint16(n)
		m.data = t.src[off:min(off+n, len(t.src))]
		m.done = t.done
		fr.out = append(fr.out, m)
		off += n
	}
	for _, m := range fr.out {
		m.hdr.NumMsgsInTxn = uint16(len(fr.out))
	}
	t.done.reset(len(fr.out))
	return fr.out
}

func (fr *fragmenter) release(m *outMsg) { fr.msgs.Release(m) }
