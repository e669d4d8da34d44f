package edge

import (
	"github.com/influxdata/flowgraph/expvar"
)

// StatsEdge is an edge that tracks various statistics about message passing through the edge.
type StatsEdge interface {
	Edge
	// Collected returns the number of values collected by this edge.
	Collected() int64
	// Emitted returns the number of values emitted by this edge.
	Emitted() int64
	// Tokens returns the number of control tokens collected by this edge.
	Tokens() int64
}

// NewStatsEdge creates an edge that tracks statistics about the message passing through the edge.
func NewStatsEdge(e Edge) StatsEdge {
	return &statsEdge{
		edge:      e,
		collected: new(expvar.Int),
		emitted:   new(expvar.Int),
		tokens:    new(expvar.Int),
	}
}

type statsEdge struct {
	edge Edge

	collected *expvar.Int
	emitted   *expvar.Int
	tokens    *expvar.Int
}

func (e *statsEdge) Collected() int64 {
	return e.collected.IntValue()
}
func (e *statsEdge) Emitted() int64 {
	return e.emitted.IntValue()
}
func (e *statsEdge) Tokens() int64 {
	return e.tokens.IntValue()
}

func (e *statsEdge) Collect(m Message) error {
	if err := e.edge.Collect(m); err != nil {
		return err
	}
	e.incCollected(m)
	return nil
}

func (e *statsEdge) TryCollect(m Message) (bool, error) {
	ok, err := e.edge.TryCollect(m)
	if ok {
		e.incCollected(m)
	}
	return ok, err
}

func (e *statsEdge) Emit() (m Message, ok bool) {
	m, ok = e.edge.Emit()
	if ok && !IsToken(m) {
		e.emitted.Add(1)
	}
	return
}

func (e *statsEdge) Close() error {
	return e.edge.Close()
}
func (e *statsEdge) Abort() {
	e.edge.Abort()
}
func (e *statsEdge) Drain(f func(Message)) {
	e.edge.Drain(f)
}

func (e *statsEdge) incCollected(m Message) {
	if IsToken(m) {
		e.tokens.Add(1)
		return
	}
	e.collected.Add(1)
}
