package node

import (
	"github.com/influxdata/flowgraph/host"
)

// NewForwarder returns a multi-input node that passes every input through unchanged.
// It is the default farm collector.
func NewForwarder() *Node {
	return &Node{
		name:        newName("forwarder"),
		arity:       MISO,
		passthrough: true,
		channel:     -1,
	}
}

// NewDistributor returns a multi-output node that passes every input through
// unchanged, spreading values over its outputs. It is the default farm emitter.
func NewDistributor() *Node {
	return &Node{
		name:        newName("distributor"),
		arity:       SIMO,
		passthrough: true,
		channel:     -1,
	}
}

// Processor returns a node applying fn to every input.
func Processor(fn func(in any) (any, error)) *Node {
	n, _ := NewSISO(Callables{Step: host.StepFunc(fn)})
	n.SetName(newName("processor"))
	return n
}

// Source returns a node that produces values from fn until fn returns nil or
// an end-of-stream token. A source cannot be given input.
func Source(fn func() (any, error)) *Node {
	n, _ := NewSISO(Callables{Step: host.SourceFunc(fn)})
	n.SetName(newName("source"))
	n.sourceOnly = true
	return n
}

// Sink returns a node that consumes every input with fn and produces nothing.
func Sink(fn func(in any) error) *Node {
	n, _ := NewSISO(Callables{Step: host.SinkFunc(fn)})
	n.SetName(newName("sink"))
	n.sinkOnly = true
	return n
}
