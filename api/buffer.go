// Package api
// Author: momentics
//
// Shared memory region addressed by byte offset.
//
// Regions may be anonymous memory, mmap'd shared memory or device-backed memory.
// Receivers write payloads into the region and finish with a doorbell store.

package api

// Region is a fixed-size local arena that remote peers write into.
type Region interface {
	// Map returns a view of length bytes starting at offset.
	// Returns ErrOutOfRange when the window exceeds the region.
	Map(offset, length uint32) ([]byte, error)

	// StoreFlag writes a 32-bit doorbell value with release ordering so every
	// byte written through Map before it is visible to a reader that observes it.
	StoreFlag(offset, value uint32) error

	// LoadFlag reads a 32-bit doorbell value with acquire ordering.
	LoadFlag(offset uint32) (uint32, error)

	// Size returns the region size in bytes.
	Size() uint32
}
