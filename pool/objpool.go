// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package pool

import "sync"

// ObjectPool is a generic object pool.
type ObjectPool[T any] interface {
    Get() T
    Put(T)
}

// SyncPool wraps sync.Pool for generic usage across goroutines.
type SyncPool[T any] struct {
    pool *sync.Pool
}

// NewSyncPool creates a new SyncPool with a creator function.
func NewSyncPool[T any](creator func() T) *SyncPool[T] {
    return &SyncPool[T]{
        pool: &sync.Pool{New: func() any { return creator() }},
    }
}

func (sp *SyncPool[T]) Get() T {
    return sp.pool.Get().(T)
}

func (sp *SyncPool[T]) Put(obj T) {
    sp.pool.Put(obj)
}

// FreeList is a single-owner pool: a vector of owned objects plus a stack of
// free ones. It performs no synchronization and must stay on one goroutine.
type FreeList[T any] struct {
    owned []*T
    free  []*T
    reset func(*T)
}

// NewFreeList creates a free list; reset, when non-nil, runs on Release.
func NewFreeList[T any](reset func(*T)) *FreeList[T] {
    return &FreeList[T]{reset: reset}
}

// Acquire pops a free object or allocates a new owned one.
func (fl *FreeList[T]) Acquire() *T {
    if n := len(fl.free); n > 0 {
        obj := fl.free[n-1]
        fl.free[n-1] = nil
        fl.free = fl.free[:n-1]
        return obj
    }
    obj := new(T)
    fl.owned = append(fl.owned, obj)
    return obj
}

// Release returns obj to the free stack.
func (fl *FreeList[T]) Release(obj *T) {
    if obj == nil {
        return
    }
    if fl.reset != nil {
        fl.reset(obj)
    }
    fl.free = append(fl.free, obj)
}

// Get implements ObjectPool.
func (fl *FreeList[T]) Get() *T { return fl.Acquire() }

// Put implements ObjectPool.
func (fl *FreeList[T]) Put(obj *T) { fl.Release(obj) }

// Allocated returns the number of objects ever created by this list.
func (fl *FreeList[T]) Allocated() int { return len(fl.owned) }

// Available returns the number of objects ready for reuse.
func (fl *FreeList[T]) Available() int { return len(fl.free) }

var _ ObjectPool[*int] = (*FreeList[int])(nil)
