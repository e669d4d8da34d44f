package value

import (
	"sync/atomic"

	"github.com/influxdata/flowgraph/expvar"
	"github.com/influxdata/flowgraph/token"
	"github.com/pkg/errors"
)

var (
	// ErrExhausted is returned when the allocator cannot supply a cell.
	// It is fatal for the run that hit it.
	ErrExhausted = errors.New("value store exhausted")
	// ErrConsumed is returned by Unbox and Discard on a handle that was already consumed.
	ErrConsumed = errors.New("boxed value already consumed")
	// ErrNoValue is returned when boxing the "no value" sentinel.
	ErrNoValue = errors.New("cannot box no value")
	// ErrToken is returned when boxing a control token. Tokens travel unboxed.
	ErrToken = errors.New("cannot box a control token")
)

// Store boxes payloads using an injected Allocator and keeps allocation counts.
// A Store is safe for concurrent use.
type Store struct {
	alloc Allocator

	allocated expvar.Int
	freed     expvar.Int
	peak      expvar.Max
}

// NewStore returns a store backed by a. A nil allocator means HeapAllocator.
func NewStore(a Allocator) *Store {
	if a == nil {
		a = HeapAllocator{}
	}
	return &Store{alloc: a}
}

// Box wraps v in a new single-owner handle.
func (s *Store) Box(v any) (*Box, error) {
	if v == nil {
		return nil, ErrNoValue
	}
	if _, ok := v.(token.Token); ok {
		return nil, ErrToken
	}
	c, err := s.alloc.Allocate()
	if err != nil {
		if errors.Is(err, ErrExhausted) {
			return nil, err
		}
		return nil, errors.Wrapf(ErrExhausted, "allocate: %v", err)
	}
	if c == nil {
		return nil, ErrExhausted
	}
	c.v = v
	s.allocated.Add(1)
	s.peak.Set(s.Live())
	return &Box{cell: c, store: s}, nil
}

// Live returns the number of boxes that have been created but not yet consumed.
func (s *Store) Live() int64 {
	return s.allocated.IntValue() - s.freed.IntValue()
}

func (s *Store) Allocated() int64 { return s.allocated.IntValue() }
func (s *Store) Freed() int64     { return s.freed.IntValue() }

// Peak returns the highest number of simultaneously live boxes observed.
func (s *Store) Peak() int64 { return s.peak.IntValue() }

func (s *Store) release(c *Cell) {
	c.v = nil
	s.alloc.Free(c)
	s.freed.Add(1)
}

const (
	boxLive uint32 = iota
	boxConsumed
)

// Box is a single-owner handle to one payload.
type Box struct {
	state uint32
	cell  *Cell
	store *Store
}

// Unbox consumes b and returns its payload.
func (b *Box) Unbox() (any, error) {
	if !b.take() {
		return nil, ErrConsumed
	}
	c := b.cell
	b.cell = nil
	v := c.v
	b.store.release(c)
	return v, nil
}

// Peek returns the payload without consuming b.
// Only the current owner of b may call it.
func (b *Box) Peek() (any, error) {
	if b.Consumed() {
		return nil, ErrConsumed
	}
	return b.cell.v, nil
}

// Discard consumes b without extracting the payload.
func (b *Box) Discard() error {
	if !b.take() {
		return ErrConsumed
	}
	c := b.cell
	b.cell = nil
	b.store.release(c)
	return nil
}

// Consumed reports whether b has been unboxed or discarded.
func (b *Box) Consumed() bool {
	return b == nil || atomic.LoadUint32(&b.state) == boxConsumed
}

func (b *Box) take() bool {
	return b != nil && atomic.CompareAndSwapUint32(&b.state, boxLive, boxConsumed)
}
