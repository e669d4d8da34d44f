package topology

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/influxdata/flowgraph/internal/owner"
	"github.com/influxdata/flowgraph/node"
	"github.com/influxdata/flowgraph/runtime"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Option func(*base)

// WithRuntime runs the topology on rt instead of a runtime with the default config.
func WithRuntime(rt *runtime.Runtime) Option {
	return func(b *base) {
		b.rt = rt
	}
}

// WithName overrides the generated topology name.
func WithName(name string) Option {
	return func(b *base) {
		b.name = name
	}
}

var nextID int64

type base struct {
	owner.Claim

	kind string
	name string
	self component
	rt   *runtime.Runtime

	// mu serializes Run, Close and builder calls and is taken before membersMu.
	mu       sync.Mutex
	exec     atomic.Pointer[runtime.Execution]
	starting atomic.Bool

	membersMu sync.RWMutex
}

func (b *base) init(kind, prefix string, self component, opts []Option) {
	b.kind = kind
	b.self = self
	b.name = fmt.Sprintf("%s%d", prefix, atomic.AddInt64(&nextID, 1))
	for _, opt := range opts {
		opt(b)
	}
}

func (b *base) Name() string { return b.name }

// running reports whether the topology is being started or its last run is
// still executing.
func (b *base) running() bool {
	if b.starting.Load() {
		return true
	}
	exec := b.exec.Load()
	if exec == nil {
		return false
	}
	select {
	case <-exec.Done():
		return false
	default:
		return true
	}
}

// parent is implemented by the topologies a stage can be nested in.
type parent interface {
	busy() bool
	follows(s any) bool
}

// busy reports whether the topology or any topology it is nested in is running.
func (b *base) busy() bool {
	if b.running() {
		return true
	}
	if p, ok := b.Owner().(parent); ok {
		return p.busy()
	}
	return false
}

// active is busy as seen by a topology adopting this one.
func (b *base) active() bool { return b.busy() }

// followed reports whether the enclosing topologies consume this topology's outputs.
// Callers must not hold membersMu.
func (b *base) followed() bool {
	if p, ok := b.Owner().(parent); ok {
		return p.follows(b.self)
	}
	return false
}

func (b *base) ensureRuntime() (*runtime.Runtime, error) {
	if b.rt == nil {
		rt, err := runtime.New(runtime.NewConfig())
		if err != nil {
			return nil, err
		}
		b.rt = rt
	}
	return b.rt, nil
}

// Run flattens the topology into a graph and starts executing it.
func (b *base) Run() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Owned() {
		return errors.Wrapf(ErrOwned, "%s", b.name)
	}
	if b.running() {
		return ErrRunning
	}
	b.starting.Store(true)
	defer b.starting.Store(false)
	rt, err := b.ensureRuntime()
	if err != nil {
		return err
	}

	g := runtime.NewGraph()
	_, outs, err := b.self.build(g, false)
	if err != nil {
		return errors.Wrapf(err, "%s", b.name)
	}
	if b.self.terminal() {
		for _, v := range outs {
			v.SetSink(true)
		}
	} else if len(outs) > 0 {
		discard := node.Sink(func(any) error { return nil })
		discard.SetName(b.name + ".discard")
		connect(g, outs, []*runtime.Vertex{g.AddVertex(discard)}, runtime.Forward)
	}

	exec, err := rt.Start(g)
	if err != nil {
		return errors.Wrapf(err, "%s", b.name)
	}
	rt.Logger().Debug("topology started",
		zap.String("topology", b.name),
		zap.String("run", exec.ID()),
		zap.Int("nodes", len(g.Vertices())),
	)
	b.exec.Store(exec)
	return nil
}

// Wait blocks until the last run finishes and returns its first error.
func (b *base) Wait() error {
	exec := b.exec.Load()
	if exec == nil {
		return ErrNotRunning
	}
	return exec.Wait()
}

func (b *base) RunAndWait() error {
	if err := b.Run(); err != nil {
		return err
	}
	return b.Wait()
}

// close finalizes suspended nodes and then lets clear release the members.
func (b *base) close(clear func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.busy() {
		return ErrRunning
	}
	var firstErr error
	b.self.walk(func(n node.Runnable) {
		if err := n.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	b.membersMu.Lock()
	defer b.membersMu.Unlock()
	clear()
	return firstErr
}

// modify runs f with the members locked, refusing while the topology or one
// it is nested in runs. check, if set, runs before the members are locked.
func (b *base) modify(f func() error, check ...func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.busy() {
		return ErrRunning
	}
	for _, c := range check {
		if err := c(); err != nil {
			return err
		}
	}
	b.membersMu.Lock()
	defer b.membersMu.Unlock()
	return f()
}

// Stats are the statistics of a topology's last run.
type Stats struct {
	Topology string
	Run      string
	Running  bool
	Duration time.Duration
	Nodes    []runtime.NodeStats
}

func (s Stats) String() string {
	var sb strings.Builder
	state := "finished"
	if s.Running {
		state = "running"
	}
	fmt.Fprintf(&sb, "%s run %s %s after %s\n", s.Topology, s.Run, state, s.Duration)
	for _, n := range s.Nodes {
		fmt.Fprintf(&sb, "  %s (%s): received %s, sent %s\n",
			n.Node, n.State, humanize.Comma(n.Received), humanize.Comma(n.Sent))
	}
	return sb.String()
}

func (b *base) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Stats{Topology: b.name}
	exec := b.exec.Load()
	if exec == nil {
		return s
	}
	s.Run = exec.ID()
	s.Running = b.running()
	s.Duration = exec.Duration()
	s.Nodes = exec.Stats()
	return s
}

// DebugInfo describes the shape of a topology.
type DebugInfo struct {
	Name        string
	Kind        string
	Cardinality int
	MultiInput  bool
	MultiOutput bool
	InNodes     int
	OutNodes    int
}

func (d DebugInfo) String() string {
	var flags []string
	if d.MultiInput {
		flags = append(flags, "multi-input")
	}
	if d.MultiOutput {
		flags = append(flags, "multi-output")
	}
	s := fmt.Sprintf("%s %s: %s, %s, %s",
		d.Kind, d.Name,
		english.Plural(d.Cardinality, "node", ""),
		english.Plural(d.InNodes, "input node", ""),
		english.Plural(d.OutNodes, "output node", ""),
	)
	if len(flags) > 0 {
		s += " (" + strings.Join(flags, ", ") + ")"
	}
	return s
}

// DebugInfo reports the topology as it would be placed after another stage.
func (b *base) DebugInfo() DebugInfo {
	g := runtime.NewGraph()
	ins, outs, _ := b.self.build(g, true)
	return DebugInfo{
		Name:        b.name,
		Kind:        b.kind,
		Cardinality: len(g.Vertices()),
		MultiInput:  multi(ins, node.Arity.MultiInput),
		MultiOutput: multi(outs, node.Arity.MultiOutput),
		InNodes:     len(ins),
		OutNodes:    len(outs),
	}
}

func multi(vs []*runtime.Vertex, has func(node.Arity) bool) bool {
	if len(vs) > 1 {
		return true
	}
	return len(vs) == 1 && has(vs[0].Node().Arity())
}
