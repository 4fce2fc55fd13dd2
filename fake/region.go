// Package fake
// Author: momentics <momentics@gmail.com>
//
// Instrumented memory region for testing.

package fake

import (
	"sync"

	"github.com/momentics/hioload-dgrdma/api"
	"github.com/momentics/hioload-dgrdma/memory"
)

// FlagStore is one recorded doorbell write.
type FlagStore struct {
	Offset uint32
	Value  uint32
	// Writes is the number of Map calls that preceded this store.
	Writes int
}

// Region is a heap-backed api.Region that records doorbell stores and can
// fail Map on demand.
type Region struct {
	*memory.Arena

	mu      sync.Mutex
	flags   []FlagStore
	maps    int
	mapErr  error
	failAt  uint32
	failSet bool
}

var _ api.Region = (*Region)(nil)

// NewRegion creates a zeroed region of size bytes.
func NewRegion(size uint32) *Region {
	return &Region{Arena: memory.NewHeap(size)}
}

// Map implements api.Region.Map.
func (r *Region) Map(offset, length uint32) ([]byte, error) {
	r.mu.Lock()
	if r.failSet && r.failAt == offset {
		err := r.mapErr
		r.mu.Unlock()
		return nil, err
	}
	r.maps++
	r.mu.Unlock()
	return r.Arena.Map(offset, length)
}

// StoreFlag implements api.Region.StoreFlag.
func (r *Region) StoreFlag(offset, value uint32) error {
	if err := r.Arena.StoreFlag(offset, value); err != nil {
		return err
	}
	r.mu.Lock()
	r.flags = append(r.flags, FlagStore{Offset: offset, Value: value, Writes: r.maps})
	r.mu.Unlock()
	return nil
}

// FailMapAt makes Map fail with err for windows starting at offset.
func (r *Region) FailMapAt(offset uint32, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAt, r.mapErr, r.failSet = offset, err, true
}

// ClearFailure removes a FailMapAt injection.
func (r *Region) ClearFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failSet = false
	r.mapErr = nil
}

// Flags returns the recorded doorbell stores in order.
func (r *Region) Flags() []FlagStore {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FlagStore(nil), r.flags...)
}

// Maps returns the number of successful Map calls.
func (r *Region) Maps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maps
}
