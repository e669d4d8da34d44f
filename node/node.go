package node

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/influxdata/flowgraph/edge"
	"github.com/influxdata/flowgraph/host"
	"github.com/influxdata/flowgraph/internal/owner"
	"github.com/influxdata/flowgraph/token"
	"github.com/influxdata/flowgraph/value"
	"github.com/pkg/errors"
)

// ErrInitFailed is returned when an init callable reports failure.
var ErrInitFailed = errors.New("init failed")

// Callables are the user functions a node runs. Step is required.
//
// Init and Finalize take no arguments. OnEOS receives the index of the input
// that ended and may return a value or token exactly like Step.
type Callables struct {
	Step     host.Callable
	Init     host.Callable
	Finalize host.Callable
	OnEOS    host.Callable
}

// Input is what one step consumes. Msg is nil for a step without input.
type Input struct {
	Msg     edge.Message
	Channel int
}

// NoInput is the input of a source step or of the first step of a feedback-only node.
var NoInput = Input{Channel: -1}

// Binding connects a node to one run.
type Binding struct {
	Store *value.Store
	// Inputs and Outputs count the edges connected for this run.
	Inputs  int
	Outputs int
	// Sink marks a strict sink: returning a payload breaks the contract.
	Sink bool
	// Send routes a message by the node's output policy. Tokens are broadcast.
	Send func(edge.Message) error
	// SendTo routes a message to one output.
	SendTo func(m edge.Message, idx int) error
}

// Runnable is the node interface the runtime drives.
// All methods except State are called from a single goroutine at a time.
type Runnable interface {
	Name() string
	SetName(string)
	Arity() Arity
	State() State
	// Bind attaches the node to the edges of a new run.
	Bind(Binding) error
	// Init prepares the node for a run. Suspended nodes resume without calling init.
	Init() error
	// Step consumes one input and returns what the node produced.
	Step(Input) (edge.Message, error)
	// EOSNotify reports that input src has ended.
	EOSNotify(src int) (edge.Message, error)
	// Terminate ends the run with the given end-of-stream kind.
	Terminate(token.Kind) error
	// Close finalizes a suspended node.
	Close() error
	Attach(owner any) error
	Detach(owner any)
}

var nextID int64

func newName(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, atomic.AddInt64(&nextID, 1))
}

// Node is a primitive node running user callables.
type Node struct {
	owner.Claim

	name  string
	arity Arity
	calls Callables

	passthrough bool
	sourceOnly  bool
	sinkOnly    bool

	state int32

	b         Binding
	channel   int
	ended     bool
	finalized bool
}

func newNode(a Arity, c Callables) (*Node, error) {
	if c.Step == nil {
		return nil, errors.New("step callable is required")
	}
	return &Node{
		name:    newName(strings.ToLower(a.String())),
		arity:   a,
		calls:   c,
		channel: -1,
	}, nil
}

// NewSISO returns a single input, single output node.
func NewSISO(c Callables) (*Node, error) { return newNode(SISO, c) }

// NewSIMO returns a single input node that may address its outputs individually.
func NewSIMO(c Callables) (*Node, error) { return newNode(SIMO, c) }

// NewMISO returns a node that may see which input each value arrived on.
func NewMISO(c Callables) (*Node, error) { return newNode(MISO, c) }

func (n *Node) Name() string        { return n.name }
func (n *Node) SetName(name string) { n.name = name }
func (n *Node) Arity() Arity        { return n.arity }

func (n *Node) State() State {
	return State(atomic.LoadInt32(&n.state))
}

func (n *Node) setState(s State) {
	atomic.StoreInt32(&n.state, int32(s))
}

func (n *Node) Bind(b Binding) error {
	if n.sourceOnly && b.Inputs > 0 {
		return contractErr(n.name, "bind", "source given input")
	}
	if b.Store == nil {
		b.Store = value.NewStore(nil)
	}
	n.b = b
	n.channel = -1
	return nil
}

func (n *Node) Init() error {
	switch n.State() {
	case Retired:
		return contractErr(n.name, "init", "node is retired")
	case Suspended:
		n.setState(Ready)
		return nil
	}
	n.finalized = false
	n.ended = false
	if n.calls.Init != nil {
		res, err := n.call(n.calls.Init, "init")
		if err != nil {
			return err
		}
		if initFailed(res) {
			return errors.Wrapf(ErrInitFailed, "node %s: init returned %v", n.name, res)
		}
	}
	n.setState(Ready)
	return nil
}

// initFailed reports failure for false or a negative number.
// Any other result, nil included, is success.
func initFailed(res any) bool {
	if b, ok := res.(bool); ok {
		return !b
	}
	rv := reflect.ValueOf(res)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() < 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() < 0
	}
	return false
}

func (n *Node) Step(in Input) (edge.Message, error) {
	if s := n.State(); s != Ready && s != Draining {
		edge.Release(in.Msg)
		return nil, contractErr(n.name, "step", "node is "+s.String())
	}
	if in.Msg == nil {
		if n.ended {
			return nil, contractErr(n.name, "step", "source stepped after end of stream")
		}
	} else if n.sourceOnly {
		edge.Release(in.Msg)
		return nil, contractErr(n.name, "step", "source given input")
	}

	if n.passthrough {
		if in.Msg == nil {
			n.ended = true
			return edge.Encode(token.EOS()), nil
		}
		if n.State() == Draining && !edge.IsToken(in.Msg) {
			edge.Release(in.Msg)
			return edge.Encode(token.Continue()), nil
		}
		return in.Msg, nil
	}

	var args []any
	if in.Msg != nil {
		b, tok, isToken := edge.Decode(in.Msg)
		if isToken {
			args = []any{tok}
		} else {
			v, err := b.Unbox()
			if err != nil {
				return nil, errors.Wrapf(err, "node %s", n.name)
			}
			args = []any{v}
		}
	}

	n.channel = in.Channel
	res, err := n.call(n.calls.Step, "step", args...)
	n.channel = -1
	if err != nil {
		return nil, err
	}
	if res == nil && in.Msg == nil && n.b.Inputs == 0 {
		// A source with nothing more to produce ends its stream.
		n.ended = true
		return edge.Encode(token.EOS()), nil
	}
	return n.result("step", res)
}

func (n *Node) EOSNotify(src int) (edge.Message, error) {
	if n.passthrough || n.calls.OnEOS == nil {
		return edge.Encode(token.Continue()), nil
	}
	res, err := n.call(n.calls.OnEOS, "eosnotify", src)
	if err != nil {
		return nil, err
	}
	return n.result("eosnotify", res)
}

// result turns a callable result into a message.
func (n *Node) result(op string, res any) (edge.Message, error) {
	switch v := res.(type) {
	case nil:
		return edge.Encode(token.Continue()), nil
	case token.Token:
		if !v.Valid() {
			return nil, contractErr(n.name, op, "returned an invalid token")
		}
		if v.Kind() == token.KindTerminateOutput {
			if n.b.Inputs == 0 {
				n.ended = true
				return edge.Encode(token.EOS()), nil
			}
			n.setState(Draining)
		}
		return edge.Encode(v), nil
	}
	if n.sinkOnly || n.b.Sink {
		return nil, contractErr(n.name, op, fmt.Sprintf("sink returned a value of type %T", res))
	}
	if n.State() == Draining {
		return edge.Encode(token.Continue()), nil
	}
	b, err := n.b.Store.Box(res)
	if err != nil {
		return nil, errors.Wrapf(err, "node %s", n.name)
	}
	return edge.NewValueMessage(b), nil
}

func (n *Node) Terminate(k token.Kind) error {
	switch n.State() {
	case Retired, Suspended:
		return nil
	}
	if k == token.KindEOSWeak {
		n.setState(Suspended)
		return nil
	}
	err := n.finalize()
	if k == token.KindEOSNoRestart {
		n.setState(Retired)
	} else {
		n.setState(Terminated)
	}
	return err
}

func (n *Node) Close() error {
	if n.State() != Suspended {
		return nil
	}
	err := n.finalize()
	n.setState(Terminated)
	return err
}

func (n *Node) finalize() error {
	if n.finalized {
		return nil
	}
	n.finalized = true
	if n.calls.Finalize == nil {
		return nil
	}
	_, err := n.call(n.calls.Finalize, "finalize")
	return err
}

// call runs c, turning a panic into an error carrying the stack trace.
func (n *Node) call(c host.Callable, op string, args ...any) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			trace := make([]byte, 1024)
			size := runtime.Stack(trace, false)
			err = errors.Errorf("node %s: %s panicked: %v\n%s", n.name, op, r, trace[:size])
		}
	}()
	res, err = c.Call(n, args...)
	if err != nil {
		var ce *ContractError
		if !errors.As(err, &ce) {
			err = errors.Wrapf(err, "node %s: %s", n.name, op)
		}
	}
	return res, err
}

// message converts a value handed to SendOut or SendOutTo.
// A nil message with a nil error means the value was dropped.
func (n *Node) message(op string, v any) (edge.Message, error) {
	switch t := v.(type) {
	case nil:
		return nil, contractErr(n.name, op, "cannot send no value")
	case token.Token:
		if t.Kind() != token.KindTag {
			return nil, contractErr(n.name, op, "only values and tags can be sent, got "+t.String())
		}
		return edge.Encode(t), nil
	}
	if n.State() == Draining {
		return nil, nil
	}
	b, err := n.b.Store.Box(v)
	if err != nil {
		return nil, errors.Wrapf(err, "node %s", n.name)
	}
	return edge.NewValueMessage(b), nil
}

func (n *Node) SendOut(v any) error {
	if n.b.Send == nil || n.b.Outputs == 0 {
		return contractErr(n.name, "send_out", "send on a sink")
	}
	m, err := n.message("send_out", v)
	if err != nil || m == nil {
		return err
	}
	return n.b.Send(m)
}

func (n *Node) SendOutTo(v any, idx int) error {
	if !n.arity.MultiOutput() {
		return contractErr(n.name, "send_out_to", "node has a single output")
	}
	if n.b.SendTo == nil || idx < 0 || idx >= n.b.Outputs {
		return contractErr(n.name, "send_out_to", fmt.Sprintf("output index %d out of range [0,%d)", idx, n.b.Outputs))
	}
	m, err := n.message("send_out_to", v)
	if err != nil || m == nil {
		return err
	}
	return n.b.SendTo(m, idx)
}

func (n *Node) Channel() int {
	if !n.arity.MultiInput() {
		return -1
	}
	return n.channel
}

func (n *Node) Outputs() int { return n.b.Outputs }
