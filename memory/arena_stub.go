//go:build !unix

// File: memory/arena_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package memory

func mapRegion(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), nil, nil
}
