package runtime

import (
	"github.com/influxdata/flowgraph/node"
)

// EdgeKind distinguishes edges that go forward from edges that close a cycle.
type EdgeKind int

const (
	// Forward edges are bounded.
	Forward EdgeKind = iota
	// Feedback edges are unbounded so that a cycle can never block on capacity.
	Feedback
)

func (k EdgeKind) String() string {
	if k == Feedback {
		return "feedback"
	}
	return "forward"
}

// Graph is the flattened set of nodes and edges of one topology.
type Graph struct {
	vertices []*Vertex
	links    []*link
}

func NewGraph() *Graph {
	return &Graph{}
}

// Vertex is a node placed in a graph.
type Vertex struct {
	id     int
	node   node.Runnable
	policy Policy
	strict bool

	ins  []*link
	outs []*link
}

type link struct {
	from, to *Vertex
	kind     EdgeKind
}

// AddVertex places n in the graph.
func (g *Graph) AddVertex(n node.Runnable) *Vertex {
	v := &Vertex{id: len(g.vertices), node: n}
	g.vertices = append(g.vertices, v)
	return v
}

// Connect adds an edge from one vertex to another.
// Output and input indexes follow the order of the Connect calls.
func (g *Graph) Connect(from, to *Vertex, k EdgeKind) {
	l := &link{from: from, to: to, kind: k}
	from.outs = append(from.outs, l)
	to.ins = append(to.ins, l)
	g.links = append(g.links, l)
}

func (g *Graph) Vertices() []*Vertex { return g.vertices }

func (v *Vertex) Node() node.Runnable { return v.node }

// SetPolicy sets the routing policy for the vertex's values. nil means the runtime default.
func (v *Vertex) SetPolicy(p Policy) { v.policy = p }

// SetSink marks the vertex as a strict sink: its node may not produce payloads.
func (v *Vertex) SetSink(strict bool) { v.strict = strict }

func (v *Vertex) Inputs() int  { return len(v.ins) }
func (v *Vertex) Outputs() int { return len(v.outs) }

// feedbackOnly reports whether every input of v closes a cycle.
func (v *Vertex) feedbackOnly() bool {
	if len(v.ins) == 0 {
		return false
	}
	for _, l := range v.ins {
		if l.kind != Feedback {
			return false
		}
	}
	return true
}
