// Package runtime executes graphs of nodes: one goroutine per node, bounded
// forward edges, unbounded feedback edges and first-error abort.
package runtime

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/influxdata/flowgraph/edge"
	"github.com/influxdata/flowgraph/node"
	"github.com/influxdata/flowgraph/token"
	"github.com/influxdata/flowgraph/value"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runtime starts executions of graphs. It may run several graphs at once.
type Runtime struct {
	c      Config
	policy Policy
	logger *zap.Logger
	store  *value.Store
	clock  clock.Clock
}

type Option func(*Runtime)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithStore makes every run box values in s instead of a store built from the config.
func WithStore(s *value.Store) Option {
	return func(r *Runtime) {
		r.store = s
	}
}

func WithClock(c clock.Clock) Option {
	return func(r *Runtime) {
		r.clock = c
	}
}

func New(c Config, opts ...Option) (*Runtime, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid runtime config")
	}
	policy, err := ParsePolicy(c.Scheduling)
	if err != nil {
		return nil, err
	}
	r := &Runtime{
		c:      c,
		policy: policy,
		logger: zap.NewNop(),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = c.newStore()
	}
	return r, nil
}

// Store returns the value store shared by every run of r.
func (r *Runtime) Store() *value.Store { return r.store }

func (r *Runtime) Logger() *zap.Logger { return r.logger }

// Start binds every node of g to fresh edges and starts driving them.
func (r *Runtime) Start(g *Graph) (*Execution, error) {
	if len(g.vertices) == 0 {
		return nil, errors.New("graph has no nodes")
	}

	id := uuid.New()
	e := &Execution{
		id:       id,
		clock:    r.clock,
		start:    r.clock.Now(),
		logger:   r.logger.With(zap.String("run", id.String())),
		store:    r.store,
		aborting: make(chan struct{}),
		done:     make(chan struct{}),
	}

	edges := make(map[*link]edge.StatsEdge, len(g.links))
	for _, l := range g.links {
		var ed edge.Edge
		if l.kind == Feedback {
			ed = edge.NewQueueEdge(r.c.FeedbackQueueSize)
		} else {
			ed = edge.NewChannelEdge(r.c.EdgeBufferSize)
		}
		if r.c.TraceEdges {
			ed = edge.NewLogEdge(e.logger.With(
				zap.String("from", l.from.node.Name()),
				zap.String("to", l.to.node.Name()),
				zap.Stringer("kind", l.kind),
			), ed)
		}
		se := edge.NewStatsEdge(ed)
		edges[l] = se
		e.edges = append(e.edges, se)
	}

	for _, v := range g.vertices {
		d := &driver{
			exec: e,
			node: v.node,
			log:  e.logger.With(zap.String("node", v.node.Name())),
		}
		for _, l := range v.ins {
			d.ins = append(d.ins, edges[l])
		}
		for _, l := range v.outs {
			d.outs = append(d.outs, edges[l])
		}
		d.eos = make([]token.Kind, len(d.ins))
		d.feedbackOnly = v.feedbackOnly()
		if len(d.outs) > 0 {
			p := v.policy
			if p == nil {
				p = r.policy
			}
			outs := make([]edge.Edge, len(d.outs))
			for i := range d.outs {
				outs[i] = d.outs[i]
			}
			d.router = p.newRouter(outs)
		}
		if err := v.node.Bind(node.Binding{
			Store:   r.store,
			Inputs:  len(d.ins),
			Outputs: len(d.outs),
			Sink:    v.strict,
			Send:    d.send,
			SendTo:  d.sendTo,
		}); err != nil {
			return nil, err
		}
		e.drivers = append(e.drivers, d)
	}

	e.logger.Info("starting run", zap.Int("nodes", len(e.drivers)), zap.Int("edges", len(e.edges)))
	for _, d := range e.drivers {
		e.group.Go(d.run)
	}
	go e.wait()
	return e, nil
}

// Execution is one run of a graph.
type Execution struct {
	id     uuid.UUID
	clock  clock.Clock
	logger *zap.Logger
	store  *value.Store

	group   errgroup.Group
	drivers []*driver
	edges   []edge.StatsEdge

	abortOnce sync.Once
	aborting  chan struct{}

	mu    sync.Mutex
	start time.Time
	end   time.Time

	done chan struct{}
	err  error
}

func (e *Execution) ID() string { return e.id.String() }

// Wait blocks until every node has finished and returns the first error.
func (e *Execution) Wait() error {
	<-e.done
	return e.err
}

// Done is closed once the run has finished.
func (e *Execution) Done() <-chan struct{} { return e.done }

// Duration is the run's wall time so far, or in total once it has finished.
func (e *Execution) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.end.IsZero() {
		return e.clock.Since(e.start)
	}
	return e.end.Sub(e.start)
}

// NodeStats are the per node counters of a run.
type NodeStats struct {
	Node     string
	State    node.State
	Received int64
	Sent     int64
	// Tokens counts the control tokens the node sent.
	Tokens int64
}

func (e *Execution) Stats() []NodeStats {
	stats := make([]NodeStats, len(e.drivers))
	for i, d := range e.drivers {
		s := NodeStats{
			Node:  d.node.Name(),
			State: d.node.State(),
		}
		for _, in := range d.ins {
			s.Received += in.Emitted()
		}
		for _, out := range d.outs {
			s.Sent += out.Collected()
			s.Tokens += out.Tokens()
		}
		stats[i] = s
	}
	return stats
}

// abort stops every edge so that all drivers unwind.
func (e *Execution) abort() {
	e.abortOnce.Do(func() {
		close(e.aborting)
		for _, ed := range e.edges {
			ed.Abort()
		}
	})
}

func (e *Execution) aborted() bool {
	select {
	case <-e.aborting:
		return true
	default:
		return false
	}
}

func (e *Execution) wait() {
	err := e.group.Wait()
	// Free whatever is still buffered, an aborted run can leave boxes behind.
	dropped := 0
	for _, ed := range e.edges {
		ed.Drain(func(m edge.Message) {
			dropped++
			edge.Release(m)
		})
	}

	e.mu.Lock()
	e.end = e.clock.Now()
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("run failed", zap.Error(err), zap.Int("dropped", dropped))
	} else {
		e.logger.Info("run finished", zap.Duration("duration", e.Duration()), zap.Int64("live_values", e.store.Live()))
	}
	e.err = err
	close(e.done)
}
