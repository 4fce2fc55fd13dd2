//go:build unix

// File: memory/arena_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package memory

import "golang.org/x/sys/unix"

func mapRegion(size int) ([]byte, func([]byte) error, error) {
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return buf, unix.Munmap, nil
}
