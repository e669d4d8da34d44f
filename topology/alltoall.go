package topology

import (
	"github.com/influxdata/flowgraph/node"
	"github.com/influxdata/flowgraph/runtime"
	"github.com/pkg/errors"
)

// AllToAll connects every node of its first set to every node of its second set.
// Output i of a first-set node leads to the i-th second-set input.
type AllToAll struct {
	base
	first  []member
	second []member
}

func NewAllToAll(opts ...Option) *AllToAll {
	a := &AllToAll{}
	a.init("a2a", "a2a", a, opts)
	return a
}

// AddFirstSet appends the nodes values enter the a2a through.
// Each must have outputs for the second set to consume.
func (a *AllToAll) AddFirstSet(stages ...Stage) error {
	return a.modify(func() error {
		members, err := a.adoptSet(stages)
		if err != nil {
			return err
		}
		for _, m := range members {
			if !hasOutputs(m.c) {
				release(a, members)
				return errors.Wrapf(ErrNoOutput, "%s in the first set of %s", m.stage.Name(), a.name)
			}
		}
		a.first = append(a.first, members...)
		return nil
	})
}

// AddSecondSet appends the nodes values leave the a2a through.
func (a *AllToAll) AddSecondSet(stages ...Stage) error {
	return a.modify(func() error {
		members, err := a.adoptSet(stages)
		if err != nil {
			return err
		}
		a.second = append(a.second, members...)
		return nil
	})
}

func (a *AllToAll) adoptSet(stages []Stage) ([]member, error) {
	if len(stages) == 0 {
		return nil, errors.Wrap(ErrInvalidStage, "empty set")
	}
	return adopt(a, stages...)
}

// Close finalizes suspended nodes and releases both sets.
func (a *AllToAll) Close() error {
	return a.close(func() {
		release(a, a.first)
		release(a, a.second)
		a.first, a.second = nil, nil
	})
}

func (a *AllToAll) build(g *runtime.Graph, upstream bool) ([]*runtime.Vertex, []*runtime.Vertex, error) {
	a.membersMu.RLock()
	defer a.membersMu.RUnlock()
	if len(a.first) == 0 || len(a.second) == 0 {
		return nil, nil, errors.Wrapf(ErrInvalidStage, "a2a %s needs both sets", a.name)
	}
	var ins, firstOuts []*runtime.Vertex
	for _, m := range a.first {
		mIns, mOuts, err := m.c.build(g, upstream)
		if err != nil {
			return nil, nil, err
		}
		if len(mOuts) == 0 {
			return nil, nil, errors.Wrapf(ErrNoOutput, "%s in a2a %s", m.stage.Name(), a.name)
		}
		ins = append(ins, mIns...)
		firstOuts = append(firstOuts, mOuts...)
	}
	var secondIns, outs []*runtime.Vertex
	for _, m := range a.second {
		mIns, mOuts, err := m.c.build(g, true)
		if err != nil {
			return nil, nil, err
		}
		secondIns = append(secondIns, mIns...)
		outs = append(outs, mOuts...)
	}
	connect(g, firstOuts, secondIns, runtime.Forward)
	return ins, outs, nil
}

func (a *AllToAll) terminal() bool { return false }

func (a *AllToAll) walk(f func(node.Runnable)) {
	a.membersMu.RLock()
	defer a.membersMu.RUnlock()
	for _, m := range a.first {
		m.c.walk(f)
	}
	for _, m := range a.second {
		m.c.walk(f)
	}
}

func (a *AllToAll) follows(s any) bool {
	a.membersMu.RLock()
	first, second := containsMember(a.first, s), containsMember(a.second, s)
	a.membersMu.RUnlock()
	return first || (second && a.followed())
}

func (a *AllToAll) contains(s any) bool {
	a.membersMu.RLock()
	defer a.membersMu.RUnlock()
	return containsIn(a.first, s) || containsIn(a.second, s)
}
