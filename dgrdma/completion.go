// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package dgrdma

import "sync/atomic"

// Completion counts the messages of a transaction still awaiting delivery.
// The transmit engine completes messages; the application polls IsComplete.
type Completion struct {
	pending atomic.Int32
}

func (c *Completion) reset(n int) {
	c.pending.Store(int32(n))
}

// complete accounts for one message and reports whether it was the last.
// The counter never goes below zero.
func (c *Completion) complete() bool {
	for {
		cur := c.pending.Load()
		if cur <= 0 {
			return false
		}
		if c.pending.CompareAndSwap(cur, cur-1) {
			return cur == 1
		}
	}
}

// IsComplete reports whether every message has been accounted for.
func (c *Completion) IsComplete() bool { return c.pending.Load() == 0 }

// Pending returns the number of outstanding messages.
func (c *Completion) Pending() int { return int(c.pending.Load()) }
