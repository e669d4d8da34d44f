package value

import (
	"sync"
	"sync/atomic"
)

// Cell is the storage behind one boxed value.
type Cell struct {
	v any
}

// Allocator supplies and reclaims cells.
// Implementations must be safe for concurrent use by multiple nodes.
type Allocator interface {
	Allocate() (*Cell, error)
	Free(*Cell)
}

// HeapAllocator allocates every cell from the Go heap and leaves reclamation to the GC.
type HeapAllocator struct{}

func (HeapAllocator) Allocate() (*Cell, error) { return new(Cell), nil }
func (HeapAllocator) Free(*Cell)               {}

type poolAllocator struct {
	p sync.Pool
}

// NewPoolAllocator returns an allocator that recycles freed cells through a sync.Pool.
func NewPoolAllocator() Allocator {
	a := &poolAllocator{}
	a.p.New = func() interface{} {
		return new(Cell)
	}
	return a
}

func (a *poolAllocator) Allocate() (*Cell, error) {
	return a.p.Get().(*Cell), nil
}

func (a *poolAllocator) Free(c *Cell) {
	c.v = nil
	a.p.Put(c)
}

type limitAllocator struct {
	a    Allocator
	max  int64
	live int64
}

// NewLimitAllocator caps the number of cells that a may have outstanding at once.
// Allocations past the cap fail with ErrExhausted.
func NewLimitAllocator(a Allocator, max int64) Allocator {
	if a == nil {
		a = HeapAllocator{}
	}
	return &limitAllocator{a: a, max: max}
}

func (l *limitAllocator) Allocate() (*Cell, error) {
	if atomic.AddInt64(&l.live, 1) > l.max {
		atomic.AddInt64(&l.live, -1)
		return nil, ErrExhausted
	}
	c, err := l.a.Allocate()
	if err != nil {
		atomic.AddInt64(&l.live, -1)
		return nil, err
	}
	return c, nil
}

func (l *limitAllocator) Free(c *Cell) {
	l.a.Free(c)
	atomic.AddInt64(&l.live, -1)
}
