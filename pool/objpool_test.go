package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type item struct {
	n    int
	data []byte
}

func TestFreeListReuse(t *testing.T) {
	fl := NewFreeList(func(it *item) {
		it.n = 0
		it.data = it.data[:0]
	})
	a := fl.Acquire()
	a.n = 7
	a.data = append(a.data, 1, 2, 3)
	b := fl.Acquire()
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, fl.Allocated())

	fl.Release(a)
	assert.Equal(t, 1, fl.Available())
	c := fl.Acquire()
	assert.Same(t, a, c)
	assert.Zero(t, c.n)
	assert.Empty(t, c.data)
	assert.GreaterOrEqual(t, cap(c.data), 3, "reset keeps backing storage")
	assert.Equal(t, 2, fl.Allocated())
}

func TestFreeListReleaseNil(t *testing.T) {
	fl := NewFreeList[item](nil)
	fl.Release(nil)
	assert.Zero(t, fl.Available())
}

func TestSyncPool(t *testing.T) {
	sp := NewSyncPool(func() []byte { return make([]byte, 16) })
	b := sp.Get()
	assert.Len(t, b, 16)
	sp.Put(b)
}
