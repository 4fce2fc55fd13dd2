// File: dgrdma/request.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transfer request API used by data-movement layers: stage a data copy and a
// doorbell write with Copy, commit them as one transaction with Post, poll
// Status. A completed request may be posted again.

package dgrdma

import (
	"fmt"
	"sync"

	"github.com/momentics/hioload-dgrdma/api"
	"github.com/momentics/hioload-dgrdma/protocol"
)

// CopyFlags modify a staged copy.
type CopyFlags uint32

const (
	// FlagTransfer stages the 4-byte doorbell write instead of a data copy.
	FlagTransfer CopyFlags = 1 << iota
)

// flagLengthMask extracts the transfer length encoded in a doorbell value.
const flagLengthMask = 0x1fffff

// XferRequest is one reusable transfer on a connection.
type XferRequest struct {
	x *XferServices

	mu        sync.Mutex
	src       []byte
	dstOffset uint32
	hasData   bool
	flagSrc   uint32
	flagDst   uint32
	hasFlag   bool
	posted    bool
	done      Completion
}

// Copy stages a copy of nbytes from srcOffset in the local arena to
// dstOffset in the remote arena. With FlagTransfer it stages the doorbell:
// the 32-bit value at srcOffset is written to dstOffset once the data lands.
func (r *XferRequest) Copy(srcOffset, dstOffset, nbytes uint32, flags CopyFlags) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.posted && !r.done.IsComplete() {
		return api.ErrBusy
	}
	remoteSize := uint64(r.x.remote.Size)

	if flags&FlagTransfer != 0 {
		if dstOffset%4 != 0 || uint64(dstOffset)+4 > remoteSize {
			return fmt.Errorf("doorbell at %#x of %d: %w", dstOffset, remoteSize, api.ErrOutOfRange)
		}
		if _, err := r.x.local.region.LoadFlag(srcOffset); err != nil {
			return err
		}
		r.flagSrc, r.flagDst, r.hasFlag = srcOffset, dstOffset, true
		return nil
	}

	src, err := r.x.local.region.Map(srcOffset, nbytes)
	if err != nil {
		return err
	}
	// the final fragment is padded to 4 bytes on the far side
	if uint64(dstOffset)+uint64(protocol.RoundUp(int(nbytes), protocol.FinalFragmentAlign)) > remoteSize {
		return fmt.Errorf("copy to %#x+%d of %d: %w", dstOffset, nbytes, remoteSize, api.ErrOutOfRange)
	}
	r.src, r.dstOffset, r.hasData = src, dstOffset, true
	return nil
}

// Post commits the staged copies as one transaction. The doorbell value
// encodes the transfer length as (value>>1)&0x1fffff, capped at the staged
// copy size; without a doorbell the whole copy is sent.
func (r *XferRequest) Post() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.posted && !r.done.IsComplete() {
		return api.ErrBusy
	}
	if !r.hasData && !r.hasFlag {
		return fmt.Errorf("nothing staged: %w", api.ErrInvalidArgument)
	}

	t := &transaction{
		dstAddr:   r.dstOffset,
		flagAddr:  protocol.NoFlag,
		flagValue: protocol.NoFlag,
		done:      &r.done,
	}
	if r.hasFlag {
		v, err := r.x.local.region.LoadFlag(r.flagSrc)
		if err != nil {
			return err
		}
		t.flagAddr, t.flagValue = r.flagDst, v
	}
	length := len(r.src)
	if r.hasFlag {
		length = min(int((t.flagValue>>1)&flagLengthMask), length)
	}
	if length > 0 {
		t.src = r.src[:length]
	}
	if t.src == nil && !r.hasFlag {
		return fmt.Errorf("empty transfer without doorbell: %w", api.ErrInvalidArgument)
	}

	// counted before queueing so Status never reports an unsent request done
	r.done.reset(1)
	if err := r.x.post(t); err != nil {
		r.done.reset(0)
		return err
	}
	r.posted = true
	return nil
}

// Status polls for completion without blocking.
func (r *XferRequest) Status() api.Status {
	if r.done.IsComplete() {
		return api.CompleteSuccess
	}
	return api.Pending
}

// Reset discards the staged copies.
func (r *XferRequest) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.posted && !r.done.IsComplete() {
		return api.ErrBusy
	}
	r.src, r.hasData, r.hasFlag, r.posted = nil, false, false, false
	return nil
}
