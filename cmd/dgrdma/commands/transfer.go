package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/momentics/hioload-dgrdma/api"
	"github.com/momentics/hioload-dgrdma/dgrdma"
)

// Arena layout used by the commands: outbound data in the lower half,
// inbound data in the upper half, doorbell words at the top.
type layout struct {
	size uint32
}

func (l layout) outbound() uint32 { return 0 }
func (l layout) inbound() uint32  { return l.size / 2 }
func (l layout) flagSrc() uint32  { return l.size - 8 }
func (l layout) doorbell() uint32 { return l.size - 4 }
func (l layout) maxData() uint32  { return l.size/2 - 8 }

// doorbellValue encodes the transfer length and a sequence in the upper bits.
func doorbellValue(seq, size uint32) uint32 {
	return seq<<22 | size<<1 | 1
}

func doorbellLength(v uint32) uint32 { return (v >> 1) & 0x1fffff }

// fillPattern writes a recognizable pattern for transfer seq.
func fillPattern(b []byte, seq uint32) {
	for i := range b {
		b[i] = byte(uint32(i)*31 + seq)
	}
}

// post stages the local outbound area and a doorbell for the remote
// inbound area and posts them on req.
func post(req *dgrdma.XferRequest, region api.Region, local, remote layout, seq, size uint32) error {
	limit := min(local.maxData(), remote.maxData(), 0x1fffff)
	if size > limit {
		return fmt.Errorf("size %d exceeds %d: %w", size, limit, api.ErrOutOfRange)
	}
	src, err := region.Map(local.outbound(), size)
	if err != nil {
		return err
	}
	fillPattern(src, seq)
	if err := region.StoreFlag(local.flagSrc(), doorbellValue(seq, size)); err != nil {
		return err
	}
	if err := req.Reset(); err != nil {
		return err
	}
	if err := req.Copy(local.outbound(), remote.inbound(), size, 0); err != nil {
		return err
	}
	if err := req.Copy(local.flagSrc(), remote.doorbell(), 4, dgrdma.FlagTransfer); err != nil {
		return err
	}
	return req.Post()
}

// waitStatus polls req until it completes or ctx ends.
func waitStatus(ctx context.Context, req *dgrdma.XferRequest) error {
	tick := time.NewTicker(100 * time.Microsecond)
	defer tick.Stop()
	for req.Status() != api.CompleteSuccess {
		select {
		case <-ctx.Done():
			return fmt.Errorf("transfer still pending: %w", ctx.Err())
		case <-tick.C:
		}
	}
	return nil
}

// waitDoorbell polls the local doorbell until it holds want.
func waitDoorbell(ctx context.Context, region api.Region, l layout, want uint32) error {
	tick := time.NewTicker(100 * time.Microsecond)
	defer tick.Stop()
	for {
		v, err := region.LoadFlag(l.doorbell())
		if err != nil {
			return err
		}
		if v == want {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("doorbell %#x never arrived (have %#x): %w", want, v, ctx.Err())
		case <-tick.C:
		}
	}
}

// verify checks the inbound area against the pattern of transfer seq.
func verify(region api.Region, l layout, seq, size uint32) error {
	got, err := region.Map(l.inbound(), size)
	if err != nil {
		return err
	}
	want := make([]byte, size)
	fillPattern(want, seq)
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("transfer %d: byte %d is %#x, want %#x", seq, i, got[i], want[i])
		}
	}
	return nil
}
