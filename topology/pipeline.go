package topology

import (
	"github.com/influxdata/flowgraph/node"
	"github.com/influxdata/flowgraph/runtime"
	"github.com/pkg/errors"
)

// Pipeline runs its stages one after the other.
type Pipeline struct {
	base
	stages []member
}

func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{}
	p.init("pipeline", "pipeline", p, opts)
	return p
}

// AddStage appends s, a node or a nested topology.
func (p *Pipeline) AddStage(s Stage) error {
	return p.modify(func() error {
		if n := len(p.stages); n > 0 && !hasOutputs(p.stages[n-1].c) {
			return errors.Wrapf(ErrNoOutput, "%s has no outputs, no stage can follow it", p.stages[n-1].stage.Name())
		}
		members, err := adopt(p, s)
		if err != nil {
			return err
		}
		p.stages = append(p.stages, members...)
		return nil
	})
}

// Close finalizes suspended nodes and releases every stage.
func (p *Pipeline) Close() error {
	return p.close(func() {
		release(p, p.stages)
		p.stages = nil
	})
}

func (p *Pipeline) build(g *runtime.Graph, upstream bool) ([]*runtime.Vertex, []*runtime.Vertex, error) {
	p.membersMu.RLock()
	defer p.membersMu.RUnlock()
	if len(p.stages) == 0 {
		return nil, nil, errors.Wrapf(ErrInvalidStage, "pipeline %s has no stages", p.name)
	}
	var ins, prev []*runtime.Vertex
	for i, m := range p.stages {
		sIns, sOuts, err := m.c.build(g, upstream || i > 0)
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			ins = sIns
		} else {
			if len(prev) == 0 {
				return nil, nil, errors.Wrapf(ErrNoOutput, "stage %d of %s", i-1, p.name)
			}
			connect(g, prev, sIns, runtime.Forward)
		}
		prev = sOuts
	}
	return ins, prev, nil
}

func (p *Pipeline) terminal() bool {
	p.membersMu.RLock()
	defer p.membersMu.RUnlock()
	if len(p.stages) == 0 {
		return false
	}
	return p.stages[len(p.stages)-1].c.terminal()
}

func (p *Pipeline) walk(f func(node.Runnable)) {
	p.membersMu.RLock()
	defer p.membersMu.RUnlock()
	for _, m := range p.stages {
		m.c.walk(f)
	}
}

func (p *Pipeline) follows(s any) bool {
	p.membersMu.RLock()
	last := -1
	for i, m := range p.stages {
		if any(m.stage) == s {
			last = i
		}
	}
	inner := last >= 0 && last < len(p.stages)-1
	p.membersMu.RUnlock()
	if last < 0 {
		return false
	}
	return inner || p.followed()
}

func (p *Pipeline) contains(s any) bool {
	p.membersMu.RLock()
	defer p.membersMu.RUnlock()
	return containsIn(p.stages, s)
}
