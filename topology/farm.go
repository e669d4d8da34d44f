package topology

import (
	"github.com/influxdata/flowgraph/node"
	"github.com/influxdata/flowgraph/runtime"
	"github.com/pkg/errors"
)

// Farm spreads its input over a set of workers.
//
// An emitter distributes values to the workers and an optional collector
// gathers their results. Without a user emitter a default distributor is used
// whenever the farm has an upstream stage; with neither, the workers are
// sources. Without a collector the workers' outputs are the farm's outputs.
type Farm struct {
	base

	emitter        *member
	defaultEmitter bool
	workers        []member
	collector      *member
	hasCollector   bool
	wrap           bool
	policy         runtime.Policy
}

func NewFarm(opts ...Option) *Farm {
	f := &Farm{}
	f.init("farm", "farm", f, opts)
	return f
}

// AddWorkers appends workers, nodes or nested topologies.
func (f *Farm) AddWorkers(workers ...Stage) error {
	return f.modify(func() error {
		if len(workers) == 0 {
			return errors.Wrap(ErrInvalidStage, "no workers given")
		}
		members, err := adopt(f, workers...)
		if err != nil {
			return err
		}
		f.workers = append(f.workers, members...)
		return nil
	})
}

// AddEmitter sets the farm's emitter. A nil stage selects the default distributor.
func (f *Farm) AddEmitter(s Stage) error {
	return f.modify(func() error {
		if f.emitter != nil || f.defaultEmitter {
			return errors.Wrap(ErrInvalidStage, "farm already has an emitter")
		}
		if s == nil {
			f.defaultEmitter = true
			return nil
		}
		m, err := adoptNode(f, s)
		if err != nil {
			return err
		}
		f.emitter = m
		return nil
	})
}

// AddCollector sets the farm's collector. A nil stage selects the default forwarder.
func (f *Farm) AddCollector(s Stage) error {
	return f.modify(func() error {
		if f.hasCollector {
			return errors.Wrap(ErrInvalidStage, "farm already has a collector")
		}
		if s != nil {
			m, err := adoptNode(f, s)
			if err != nil {
				return err
			}
			f.collector = m
		}
		f.hasCollector = true
		return nil
	})
}

// WrapAround feeds the farm's results back into its emitter, which must be
// a multi-input node. Results come from the collector if there is one and
// from every worker otherwise. A wrapped farm has no outputs, so it cannot
// wrap around once a stage follows it.
func (f *Farm) WrapAround() error {
	notFollowed := func() error {
		if f.followed() {
			return errors.Wrapf(ErrWrapAround, "a stage follows %s", f.name)
		}
		return nil
	}
	return f.modify(func() error {
		if f.emitter == nil {
			return errors.Wrap(ErrWrapAround, "farm needs an emitter node to wrap around")
		}
		if !f.emitter.stage.(node.Runnable).Arity().MultiInput() {
			return errors.Wrapf(ErrWrapAround, "emitter %s is not multi-input", f.emitter.stage.Name())
		}
		f.wrap = true
		return nil
	}, notFollowed)
}

// SetScheduling sets the policy the emitter uses to pick a worker.
func (f *Farm) SetScheduling(p runtime.Policy) error {
	return f.modify(func() error {
		f.policy = p
		return nil
	})
}

// Close finalizes suspended nodes and releases the emitter, workers and collector.
func (f *Farm) Close() error {
	return f.close(func() {
		release(f, f.all())
		f.emitter, f.collector, f.workers = nil, nil, nil
		f.defaultEmitter, f.hasCollector, f.wrap = false, false, false
	})
}

// follows reports whether the outputs of member s are consumed.
func (f *Farm) follows(s any) bool {
	f.membersMu.RLock()
	var consumed, found bool
	switch {
	case f.emitter != nil && any(f.emitter.stage) == s:
		found, consumed = true, true
	case f.collector != nil && any(f.collector.stage) == s:
		found, consumed = true, f.wrap
	default:
		for _, w := range f.workers {
			if any(w.stage) == s {
				found, consumed = true, f.hasCollector || f.wrap
				break
			}
		}
	}
	f.membersMu.RUnlock()
	if !found {
		return false
	}
	return consumed || f.followed()
}

// all lists every member. Caller holds membersMu.
func (f *Farm) all() []member {
	var members []member
	if f.emitter != nil {
		members = append(members, *f.emitter)
	}
	members = append(members, f.workers...)
	if f.collector != nil {
		members = append(members, *f.collector)
	}
	return members
}

func adoptNode(o any, s Stage) (*member, error) {
	if _, ok := s.(node.Runnable); !ok {
		return nil, errors.Wrapf(ErrInvalidStage, "%s must be a node, got %T", s.Name(), s)
	}
	members, err := adopt(o, s)
	if err != nil {
		return nil, err
	}
	return &members[0], nil
}

func (f *Farm) build(g *runtime.Graph, upstream bool) ([]*runtime.Vertex, []*runtime.Vertex, error) {
	f.membersMu.RLock()
	defer f.membersMu.RUnlock()
	if len(f.workers) == 0 {
		return nil, nil, errors.Wrapf(ErrInvalidStage, "farm %s has no workers", f.name)
	}

	var emitter *runtime.Vertex
	switch {
	case f.emitter != nil:
		emitter = g.AddVertex(f.emitter.stage.(node.Runnable))
	case f.defaultEmitter || upstream:
		d := node.NewDistributor()
		d.SetName(f.name + ".emitter")
		emitter = g.AddVertex(d)
	}
	if emitter != nil && f.policy != nil {
		emitter.SetPolicy(f.policy)
	}

	var ins, outs []*runtime.Vertex
	for _, w := range f.workers {
		wIns, wOuts, err := w.c.build(g, emitter != nil)
		if err != nil {
			return nil, nil, err
		}
		if emitter != nil {
			connect(g, []*runtime.Vertex{emitter}, wIns, runtime.Forward)
		}
		ins = append(ins, wIns...)
		outs = append(outs, wOuts...)
	}
	if emitter != nil {
		ins = []*runtime.Vertex{emitter}
	}

	if f.hasCollector {
		var c node.Runnable
		if f.collector != nil {
			c = f.collector.stage.(node.Runnable)
		} else {
			fwd := node.NewForwarder()
			fwd.SetName(f.name + ".collector")
			c = fwd
		}
		cv := g.AddVertex(c)
		if len(outs) == 0 {
			return nil, nil, errors.Wrapf(ErrNoOutput, "workers of %s have no outputs for the collector", f.name)
		}
		connect(g, outs, []*runtime.Vertex{cv}, runtime.Forward)
		outs = []*runtime.Vertex{cv}
	}

	if f.wrap {
		if emitter == nil || f.emitter == nil {
			return nil, nil, errors.Wrapf(ErrWrapAround, "farm %s has no emitter", f.name)
		}
		if len(outs) == 0 {
			return nil, nil, errors.Wrapf(ErrNoOutput, "farm %s has nothing to feed back", f.name)
		}
		connect(g, outs, []*runtime.Vertex{emitter}, runtime.Feedback)
		outs = nil
	}
	return ins, outs, nil
}

func (f *Farm) terminal() bool { return false }

func (f *Farm) walk(fn func(node.Runnable)) {
	f.membersMu.RLock()
	defer f.membersMu.RUnlock()
	for _, m := range f.all() {
		m.c.walk(fn)
	}
}

func (f *Farm) contains(s any) bool {
	f.membersMu.RLock()
	defer f.membersMu.RUnlock()
	return containsIn(f.all(), s)
}
