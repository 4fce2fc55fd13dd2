// File: memory/arena.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package memory

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/momentics/hioload-dgrdma/api"
)

// Arena is a fixed-size region implementing api.Region.
type Arena struct {
	buf    []byte
	unmap  func([]byte) error
	closed atomic.Bool
}

var _ api.Region = (*Arena)(nil)

// New allocates an arena of size bytes, preferring a shared mapping.
func New(size uint32) (*Arena, error) {
	if size == 0 {
		return nil, fmt.Errorf("arena size: %w", api.ErrInvalidArgument)
	}
	buf, unmap, err := mapRegion(int(size))
	if err != nil {
		return nil, fmt.Errorf("map arena of %d bytes: %w", size, err)
	}
	return &Arena{buf: buf, unmap: unmap}, nil
}

// NewHeap allocates an arena from the Go heap.
func NewHeap(size uint32) *Arena {
	return &Arena{buf: make([]byte, size)}
}

// Size returns the arena size in bytes.
func (a *Arena) Size() uint32 { return uint32(len(a.buf)) }

// Map returns the window [offset, offset+length).
func (a *Arena) Map(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(a.buf)) {
		return nil, fmt.Errorf("map %d+%d of %d: %w", offset, length, len(a.buf), api.ErrOutOfRange)
	}
	return a.buf[offset:end:end], nil
}

func (a *Arena) word(offset uint32) (*uint32, error) {
	if offset%4 != 0 {
		return nil, fmt.Errorf("flag offset %#x not 4-byte aligned: %w", offset, api.ErrInvalidArgument)
	}
	if uint64(offset)+4 > uint64(len(a.buf)) {
		return nil, fmt.Errorf("flag offset %#x of %d: %w", offset, len(a.buf), api.ErrOutOfRange)
	}
	return (*uint32)(unsafe.Pointer(&a.buf[offset])), nil
}

// StoreFlag performs the doorbell write. Go atomics are sequentially
// consistent, which subsumes the release ordering the protocol needs.
func (a *Arena) StoreFlag(offset, value uint32) error {
	p, err := a.word(offset)
	if err != nil {
		return err
	}
	atomic.StoreUint32(p, value)
	return nil
}

// LoadFlag reads a doorbell with acquire ordering.
func (a *Arena) LoadFlag(offset uint32) (uint32, error) {
	p, err := a.word(offset)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(p), nil
}

// Close releases a mapped arena. The arena must not be used afterwards.
func (a *Arena) Close() error {
	if !a.closed.CompareAndSwap(false, true) || a.unmap == nil {
		return nil
	}
	return a.unmap(a.buf)
}
