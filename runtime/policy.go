package runtime

import (
	"github.com/cespare/xxhash"
	"github.com/influxdata/flowgraph/edge"
	"github.com/pkg/errors"
)

// Policy decides which output edge receives each value a node emits.
// Tokens are never routed, they are broadcast on every output.
type Policy interface {
	String() string
	newRouter(outs []edge.Edge) router
}

type router interface {
	route(m edge.Message) error
}

var (
	// RoundRobin hands values to the outputs in turn.
	RoundRobin Policy = roundRobin{}
	// OnDemand hands each value to the first output with free room,
	// falling back to round robin when every output is full.
	OnDemand Policy = onDemand{}
)

// ParsePolicy returns the policy named by a scheduling config value.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", SchedulingRoundRobin:
		return RoundRobin, nil
	case SchedulingOnDemand:
		return OnDemand, nil
	default:
		return nil, errors.Errorf("unknown scheduling policy %q", s)
	}
}

type roundRobin struct{}

func (roundRobin) String() string { return SchedulingRoundRobin }

func (roundRobin) newRouter(outs []edge.Edge) router {
	return &roundRobinRouter{outs: outs}
}

type roundRobinRouter struct {
	outs []edge.Edge
	next int
}

func (r *roundRobinRouter) route(m edge.Message) error {
	out := r.outs[r.next]
	r.next = (r.next + 1) % len(r.outs)
	return out.Collect(m)
}

type onDemand struct{}

func (onDemand) String() string { return SchedulingOnDemand }

func (onDemand) newRouter(outs []edge.Edge) router {
	return &onDemandRouter{outs: outs}
}

type onDemandRouter struct {
	outs []edge.Edge
	next int
}

func (r *onDemandRouter) route(m edge.Message) error {
	n := len(r.outs)
	for i := 0; i < n; i++ {
		idx := (r.next + i) % n
		ok, err := r.outs[idx].TryCollect(m)
		if err != nil {
			return err
		}
		if ok {
			r.next = (idx + 1) % n
			return nil
		}
	}
	out := r.outs[r.next]
	r.next = (r.next + 1) % n
	return out.Collect(m)
}

type keyHash struct {
	key func(any) string
}

// KeyHash sends every value with the same key to the same output.
func KeyHash(key func(v any) string) Policy {
	return keyHash{key: key}
}

func (keyHash) String() string { return "key-hash" }

func (p keyHash) newRouter(outs []edge.Edge) router {
	return &keyHashRouter{outs: outs, key: p.key}
}

type keyHashRouter struct {
	outs []edge.Edge
	key  func(any) string
}

func (r *keyHashRouter) route(m edge.Message) error {
	b, _, _ := edge.Decode(m)
	v, err := b.Peek()
	if err != nil {
		return err
	}
	idx := xxhash.Sum64String(r.key(v)) % uint64(len(r.outs))
	return r.outs[idx].Collect(m)
}
