// Package pool
// Author: momentics <momentics@gmail.com>
//
// Object reuse for the transport hot paths.
// SyncPool is shared between goroutines; FreeList belongs to a single event
// loop and never synchronizes.
package pool
