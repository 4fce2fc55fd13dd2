// File: internal/dedup/dedup.go
// Package dedup implements the bounded duplicate-frame filter.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The filter remembers the most recent distinct frame sequence numbers. Once a
// value is evicted it is accepted again, so reordering deeper than the window
// can re-admit an old frame. The window size is configurable.

package dedup

import "github.com/eapache/queue"

// DefaultWindow is the number of distinct sequence numbers remembered.
const DefaultWindow = 256

// Filter is a set of recently seen sequence numbers with FIFO eviction.
// It is not safe for concurrent use; the owning connection serializes access.
type Filter struct {
	window int
	seen   map[uint16]struct{}
	order  *queue.Queue
}

// New returns a filter remembering up to window values.
func New(window int) *Filter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Filter{
		window: window,
		seen:   make(map[uint16]struct{}, window),
		order:  queue.New(),
	}
}

// Check returns true the first time seq is seen and false on a repeat.
func (f *Filter) Check(seq uint16) bool {
	if _, dup := f.seen[seq]; dup {
		return false
	}
	if len(f.seen) >= f.window {
		oldest := f.order.Remove().(uint16)
		delete(f.seen, oldest)
	}
	f.seen[seq] = struct{}{}
	f.order.Add(seq)
	return true
}

// Len returns the number of remembered values.
func (f *Filter) Len() int { return len(f.seen) }

// Window returns the configured capacity.
func (f *Filter) Window() int { return f.window }
