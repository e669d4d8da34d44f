package topology

import (
	"github.com/influxdata/flowgraph/internal/owner"
	"github.com/influxdata/flowgraph/node"
	"github.com/influxdata/flowgraph/runtime"
	"github.com/pkg/errors"
)

// Stage is anything that can be placed in a topology: a node.Runnable or
// a *Pipeline, *Farm or *AllToAll.
type Stage interface {
	Name() string
	Attach(owner any) error
	Detach(owner any)
}

// component is the flattening contract shared by nodes and topologies.
type component interface {
	// build adds the component to g and returns its input and output vertices.
	// upstream tells whether something will be connected to the inputs.
	build(g *runtime.Graph, upstream bool) (ins, outs []*runtime.Vertex, err error)
	// terminal reports whether the final outputs are plain nodes.
	terminal() bool
	walk(f func(node.Runnable))
	contains(s any) bool
	// active reports whether the component is being driven by a run.
	active() bool
}

type member struct {
	stage Stage
	c     component
}

type nodeComponent struct {
	n node.Runnable
}

func (c nodeComponent) build(g *runtime.Graph, upstream bool) ([]*runtime.Vertex, []*runtime.Vertex, error) {
	v := g.AddVertex(c.n)
	return []*runtime.Vertex{v}, []*runtime.Vertex{v}, nil
}

func (c nodeComponent) terminal() bool             { return true }
func (c nodeComponent) walk(f func(node.Runnable)) { f(c.n) }
func (c nodeComponent) contains(any) bool          { return false }

func (c nodeComponent) active() bool {
	s := c.n.State()
	return s == node.Ready || s == node.Draining
}

func asComponent(s Stage) (component, error) {
	switch v := s.(type) {
	case component:
		return v, nil
	case node.Runnable:
		return nodeComponent{n: v}, nil
	default:
		return nil, errors.Wrapf(ErrInvalidStage, "unsupported stage type %T", s)
	}
}

// adopt validates stages and attaches them to o. Either every stage is
// attached or, on error, none is.
func adopt(o any, stages ...Stage) ([]member, error) {
	members := make([]member, 0, len(stages))
	seen := make(map[Stage]bool, len(stages))
	for _, s := range stages {
		if s == nil {
			return nil, errors.Wrap(ErrInvalidStage, "nil stage")
		}
		if any(s) == o {
			return nil, errors.Wrap(ErrInvalidStage, "a topology cannot contain itself")
		}
		if seen[s] {
			return nil, errors.Wrapf(ErrDuplicateNode, "%s given twice", s.Name())
		}
		seen[s] = true
		c, err := asComponent(s)
		if err != nil {
			return nil, err
		}
		if c.active() {
			return nil, errors.Wrapf(ErrRunning, "%s", s.Name())
		}
		if c.contains(o) {
			return nil, errors.Wrapf(ErrInvalidStage, "%s contains the topology it is added to", s.Name())
		}
		members = append(members, member{stage: s, c: c})
	}
	for i, m := range members {
		if err := m.stage.Attach(o); err != nil {
			for _, prev := range members[:i] {
				prev.stage.Detach(o)
			}
			if errors.Is(err, owner.ErrAttached) {
				return nil, errors.Wrapf(ErrDuplicateNode, "%s", m.stage.Name())
			}
			return nil, err
		}
	}
	return members, nil
}

// hasOutputs reports whether something placed after c would receive values.
// A component that cannot be built yet is given the benefit of the doubt.
func hasOutputs(c component) bool {
	_, outs, err := c.build(runtime.NewGraph(), true)
	return err != nil || len(outs) > 0
}

func release(o any, members []member) {
	for _, m := range members {
		m.stage.Detach(o)
	}
}

func containsMember(members []member, s any) bool {
	for _, m := range members {
		if any(m.stage) == s {
			return true
		}
	}
	return false
}

func containsIn(members []member, s any) bool {
	for _, m := range members {
		if any(m.stage) == s || m.c.contains(s) {
			return true
		}
	}
	return false
}

// connect links every output of one stage to every input of the next.
func connect(g *runtime.Graph, outs, ins []*runtime.Vertex, k runtime.EdgeKind) {
	for _, from := range outs {
		for _, to := range ins {
			g.Connect(from, to, k)
		}
	}
}
