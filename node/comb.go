package node

import (
	"github.com/influxdata/flowgraph/edge"
	"github.com/influxdata/flowgraph/internal/owner"
	"github.com/influxdata/flowgraph/token"
	"github.com/pkg/errors"
)

// Comb runs two nodes back to back as one: every message accepted by in is
// handed straight to out, and out's results are the results of the comb.
type Comb struct {
	owner.Claim

	in  *Node
	out *Node
}

// NewMIMO returns a multi input, multi output node: a forwarder on the input
// side combined with a multi-output node running c.
func NewMIMO(c Callables) (*Comb, error) {
	out, err := newNode(MIMO, c)
	if err != nil {
		return nil, err
	}
	in := NewForwarder()
	in.SetName(out.Name() + ".in")
	return &Comb{in: in, out: out}, nil
}

func (c *Comb) Name() string { return c.out.Name() }

func (c *Comb) SetName(name string) {
	c.out.SetName(name)
	c.in.SetName(name + ".in")
}

func (c *Comb) Arity() Arity { return MIMO }
func (c *Comb) State() State { return c.out.State() }

func (c *Comb) Bind(b Binding) error {
	if err := c.in.Bind(Binding{Store: b.Store, Inputs: b.Inputs, Outputs: 1}); err != nil {
		return err
	}
	return c.out.Bind(b)
}

func (c *Comb) Init() error {
	if err := c.in.Init(); err != nil {
		return err
	}
	return c.out.Init()
}

func (c *Comb) Step(in Input) (edge.Message, error) {
	if in.Msg == nil {
		return c.out.Step(in)
	}
	m, err := c.in.Step(in)
	if err != nil {
		return nil, err
	}
	return c.out.Step(Input{Msg: m, Channel: in.Channel})
}

func (c *Comb) EOSNotify(src int) (edge.Message, error) {
	if _, err := c.in.EOSNotify(src); err != nil {
		return nil, err
	}
	return c.out.EOSNotify(src)
}

func (c *Comb) Terminate(k token.Kind) error {
	inErr := c.in.Terminate(k)
	if err := c.out.Terminate(k); err != nil {
		return err
	}
	return errors.Wrap(inErr, "input forwarder")
}

func (c *Comb) Close() error {
	inErr := c.in.Close()
	if err := c.out.Close(); err != nil {
		return err
	}
	return errors.Wrap(inErr, "input forwarder")
}
