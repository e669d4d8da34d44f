package node_test

import (
	"testing"

	"github.com/influxdata/flowgraph/edge"
	"github.com/influxdata/flowgraph/host"
	"github.com/influxdata/flowgraph/node"
	"github.com/influxdata/flowgraph/token"
	"github.com/influxdata/flowgraph/value"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outputs records what a node sends outside of its step results.
type outputs struct {
	store *value.Store
	sent  []any
	to    []int
}

func (o *outputs) record(m edge.Message, idx int) error {
	b, tok, isToken := edge.Decode(m)
	if isToken {
		o.sent = append(o.sent, tok)
	} else {
		v, err := b.Unbox()
		if err != nil {
			return err
		}
		o.sent = append(o.sent, v)
	}
	o.to = append(o.to, idx)
	return nil
}

func (o *outputs) binding(inputs, outs int) node.Binding {
	return node.Binding{
		Store:   o.store,
		Inputs:  inputs,
		Outputs: outs,
		Send: func(m edge.Message) error {
			return o.record(m, -1)
		},
		SendTo: o.record,
	}
}

func newOutputs() *outputs {
	return &outputs{store: value.NewStore(nil)}
}

func input(t *testing.T, s *value.Store, v any) node.Input {
	t.Helper()
	b, err := s.Box(v)
	require.NoError(t, err)
	return node.Input{Msg: edge.NewValueMessage(b)}
}

func unbox(t *testing.T, m edge.Message) any {
	t.Helper()
	b, _, isToken := edge.Decode(m)
	require.False(t, isToken, "expected a value, got %s", edge.Describe(m))
	v, err := b.Unbox()
	require.NoError(t, err)
	return v
}

func tokenOf(t *testing.T, m edge.Message) token.Token {
	t.Helper()
	_, tok, isToken := edge.Decode(m)
	require.True(t, isToken, "expected a token")
	return tok
}

func ready(t *testing.T, n node.Runnable, b node.Binding) {
	t.Helper()
	require.NoError(t, n.Bind(b))
	require.NoError(t, n.Init())
	require.Equal(t, node.Ready, n.State())
}

func TestArity(t *testing.T) {
	tests := []struct {
		arity       node.Arity
		multiInput  bool
		multiOutput bool
	}{
		{node.SISO, false, false},
		{node.SIMO, false, true},
		{node.MISO, true, false},
		{node.MIMO, true, true},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.multiInput, tc.arity.MultiInput(), tc.arity.String())
		assert.Equal(t, tc.multiOutput, tc.arity.MultiOutput(), tc.arity.String())
	}
}

func TestNew_RequiresStep(t *testing.T) {
	_, err := node.NewSISO(node.Callables{})
	assert.Error(t, err)
	_, err = node.NewMIMO(node.Callables{})
	assert.Error(t, err)
}

func TestStep_Processor(t *testing.T) {
	o := newOutputs()
	n := node.Processor(func(in any) (any, error) {
		return in.(int) * 2, nil
	})
	ready(t, n, o.binding(1, 1))

	m, err := n.Step(input(t, o.store, 21))
	require.NoError(t, err)
	assert.Equal(t, 42, unbox(t, m))
	assert.Equal(t, int64(0), o.store.Live())
}

func TestStep_NilResult(t *testing.T) {
	o := newOutputs()
	n := node.Processor(func(in any) (any, error) { return nil, nil })
	ready(t, n, o.binding(1, 1))

	m, err := n.Step(input(t, o.store, 1))
	require.NoError(t, err)
	assert.Equal(t, token.Continue(), tokenOf(t, m))
}

func TestStep_SourceEnds(t *testing.T) {
	o := newOutputs()
	i := 0
	n := node.Source(func() (any, error) {
		i++
		if i > 2 {
			return nil, nil
		}
		return i, nil
	})
	ready(t, n, o.binding(0, 1))

	for want := 1; want <= 2; want++ {
		m, err := n.Step(node.NoInput)
		require.NoError(t, err)
		assert.Equal(t, want, unbox(t, m))
	}
	m, err := n.Step(node.NoInput)
	require.NoError(t, err)
	assert.Equal(t, token.EOS(), tokenOf(t, m))

	_, err = n.Step(node.NoInput)
	var ce *node.ContractError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, 3, i, "source must not run after its end of stream")
}

func TestSource_GivenInput(t *testing.T) {
	o := newOutputs()
	n := node.Source(func() (any, error) { return 1, nil })
	err := n.Bind(o.binding(1, 1))
	var ce *node.ContractError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "source given input", ce.Reason)
}

func TestSink_ReturningPayload(t *testing.T) {
	o := newOutputs()
	strict := node.Processor(func(in any) (any, error) { return in, nil })
	b := o.binding(1, 0)
	b.Sink = true
	ready(t, strict, b)

	_, err := strict.Step(input(t, o.store, "x"))
	var ce *node.ContractError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, int64(0), o.store.Live())

	var got []any
	sink := node.Sink(func(in any) error {
		got = append(got, in)
		return nil
	})
	ready(t, sink, o.binding(1, 0))
	m, err := sink.Step(input(t, o.store, "y"))
	require.NoError(t, err)
	assert.Equal(t, token.Continue(), tokenOf(t, m))
	assert.Equal(t, []any{"y"}, got)
}

func TestStep_TagDeliveredAsInput(t *testing.T) {
	o := newOutputs()
	var got any
	n := node.Processor(func(in any) (any, error) {
		got = in
		return in, nil
	})
	ready(t, n, o.binding(1, 1))

	tag := token.MustTag(99)
	m, err := n.Step(node.Input{Msg: edge.Encode(tag)})
	require.NoError(t, err)
	assert.Equal(t, tag, got)
	assert.Equal(t, tag, tokenOf(t, m))
}

func TestStep_TerminateOutput(t *testing.T) {
	o := newOutputs()
	calls := 0
	n := node.Processor(func(in any) (any, error) {
		calls++
		if calls == 1 {
			return token.TerminateOutput(), nil
		}
		return in, nil
	})
	ready(t, n, o.binding(1, 1))

	m, err := n.Step(input(t, o.store, 1))
	require.NoError(t, err)
	assert.Equal(t, token.TerminateOutput(), tokenOf(t, m))
	assert.Equal(t, node.Draining, n.State())

	// later output is discarded while input is still consumed
	m, err = n.Step(input(t, o.store, 2))
	require.NoError(t, err)
	assert.Equal(t, token.Continue(), tokenOf(t, m))
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(0), o.store.Live())

	src := node.Source(func() (any, error) { return token.TerminateOutput(), nil })
	ready(t, src, o.binding(0, 1))
	m, err = src.Step(node.NoInput)
	require.NoError(t, err)
	assert.Equal(t, token.EOS(), tokenOf(t, m))
}

func TestSendOut(t *testing.T) {
	o := newOutputs()
	n, err := node.NewSIMO(node.Callables{
		Step: host.Func(func(self host.Self, args ...any) (any, error) {
			if err := self.SendOut("a"); err != nil {
				return nil, err
			}
			if err := self.SendOut(token.MustTag(20)); err != nil {
				return nil, err
			}
			if err := self.SendOutTo("b", 1); err != nil {
				return nil, err
			}
			return token.Continue(), nil
		}),
	})
	require.NoError(t, err)
	ready(t, n, o.binding(1, 2))

	m, err := n.Step(input(t, o.store, 0))
	require.NoError(t, err)
	assert.Equal(t, token.Continue(), tokenOf(t, m))
	assert.Equal(t, []any{"a", token.MustTag(20), "b"}, o.sent)
	assert.Equal(t, []int{-1, -1, 1}, o.to)
	assert.Equal(t, int64(0), o.store.Live())
}

func TestSendOut_Contract(t *testing.T) {
	tests := []struct {
		name    string
		arity   node.Arity
		outputs int
		send    func(self host.Self) error
	}{
		{
			name:  "send on a sink",
			arity: node.SIMO,
			send:  func(self host.Self) error { return self.SendOut(1) },
		},
		{
			name:    "send to on a single output node",
			arity:   node.SISO,
			outputs: 2,
			send:    func(self host.Self) error { return self.SendOutTo(1, 0) },
		},
		{
			name:    "output index out of range",
			arity:   node.SIMO,
			outputs: 2,
			send:    func(self host.Self) error { return self.SendOutTo(1, 2) },
		},
		{
			name:    "send end of stream",
			arity:   node.SISO,
			outputs: 1,
			send:    func(self host.Self) error { return self.SendOut(token.EOS()) },
		},
		{
			name:    "send no value",
			arity:   node.SISO,
			outputs: 1,
			send:    func(self host.Self) error { return self.SendOut(nil) },
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := newOutputs()
			c := node.Callables{
				Step: host.Func(func(self host.Self, args ...any) (any, error) {
					return nil, tc.send(self)
				}),
			}
			var n *node.Node
			var err error
			if tc.arity == node.SIMO {
				n, err = node.NewSIMO(c)
			} else {
				n, err = node.NewSISO(c)
			}
			require.NoError(t, err)
			ready(t, n, o.binding(1, tc.outputs))

			_, err = n.Step(input(t, o.store, 1))
			var ce *node.ContractError
			assert.True(t, errors.As(err, &ce), "got %v", err)
			assert.Empty(t, o.sent)
			assert.Equal(t, int64(0), o.store.Live())
		})
	}
}

func TestChannel(t *testing.T) {
	o := newOutputs()
	var seen []int
	step := host.Func(func(self host.Self, args ...any) (any, error) {
		seen = append(seen, self.Channel())
		return nil, nil
	})
	miso, err := node.NewMISO(node.Callables{Step: step})
	require.NoError(t, err)
	siso, err := node.NewSISO(node.Callables{Step: step})
	require.NoError(t, err)
	ready(t, miso, o.binding(3, 1))
	ready(t, siso, o.binding(3, 1))

	in := input(t, o.store, 1)
	in.Channel = 2
	_, err = miso.Step(in)
	require.NoError(t, err)
	in = input(t, o.store, 1)
	in.Channel = 2
	_, err = siso.Step(in)
	require.NoError(t, err)
	assert.Equal(t, []int{2, -1}, seen)
}

func TestInit_ReturnConvention(t *testing.T) {
	tests := []struct {
		name   string
		result any
		err    error
		fail   bool
	}{
		{name: "nil", result: nil},
		{name: "true", result: true},
		{name: "zero", result: 0},
		{name: "positive", result: 7},
		{name: "false", result: false, fail: true},
		{name: "negative", result: -1, fail: true},
		{name: "negative int64", result: int64(-3), fail: true},
		{name: "error", err: errors.New("no database"), fail: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := newOutputs()
			n, err := node.NewSISO(node.Callables{
				Step: host.StepFunc(func(in any) (any, error) { return in, nil }),
				Init: host.Func(func(host.Self, ...any) (any, error) {
					return tc.result, tc.err
				}),
			})
			require.NoError(t, err)
			require.NoError(t, n.Bind(o.binding(1, 1)))
			err = n.Init()
			if !tc.fail {
				require.NoError(t, err)
				assert.Equal(t, node.Ready, n.State())
				return
			}
			require.Error(t, err)
			if tc.err == nil {
				assert.True(t, errors.Is(err, node.ErrInitFailed))
			}
			assert.Equal(t, node.Created, n.State())
		})
	}
}

type lifecycle struct {
	inits, finals int
}

func (l *lifecycle) node(t *testing.T) *node.Node {
	n, err := node.NewSISO(node.Callables{
		Step:     host.StepFunc(func(in any) (any, error) { return in, nil }),
		Init:     host.InitFunc(func() error { l.inits++; return nil }),
		Finalize: host.InitFunc(func() error { l.finals++; return nil }),
	})
	require.NoError(t, err)
	return n
}

func TestLifecycle_EOS(t *testing.T) {
	o := newOutputs()
	l := new(lifecycle)
	n := l.node(t)

	for run := 1; run <= 2; run++ {
		ready(t, n, o.binding(1, 1))
		require.NoError(t, n.Terminate(token.KindEOS))
		require.NoError(t, n.Terminate(token.KindEOS))
		assert.Equal(t, node.Terminated, n.State())
		assert.Equal(t, run, l.inits)
		assert.Equal(t, run, l.finals)
	}
}

func TestLifecycle_EOSWeak(t *testing.T) {
	o := newOutputs()
	l := new(lifecycle)
	n := l.node(t)

	ready(t, n, o.binding(1, 1))
	require.NoError(t, n.Terminate(token.KindEOSWeak))
	assert.Equal(t, node.Suspended, n.State())
	assert.Equal(t, 0, l.finals)

	ready(t, n, o.binding(1, 1))
	assert.Equal(t, 1, l.inits, "resumed without init")
	require.NoError(t, n.Terminate(token.KindEOSWeak))

	require.NoError(t, n.Close())
	assert.Equal(t, node.Terminated, n.State())
	assert.Equal(t, 1, l.finals)
}

func TestLifecycle_EOSNoRestart(t *testing.T) {
	o := newOutputs()
	l := new(lifecycle)
	n := l.node(t)

	ready(t, n, o.binding(1, 1))
	require.NoError(t, n.Terminate(token.KindEOSNoRestart))
	assert.Equal(t, node.Retired, n.State())
	assert.Equal(t, 1, l.finals)

	require.NoError(t, n.Bind(o.binding(1, 1)))
	err := n.Init()
	var ce *node.ContractError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, l.inits)
	assert.Equal(t, node.Retired, n.State())
}

func TestLifecycle_FinalizeAfterInitFailure(t *testing.T) {
	o := newOutputs()
	finals := 0
	n, err := node.NewSISO(node.Callables{
		Step:     host.StepFunc(func(in any) (any, error) { return in, nil }),
		Init:     host.InitFunc(func() error { return errors.New("boom") }),
		Finalize: host.InitFunc(func() error { finals++; return nil }),
	})
	require.NoError(t, err)
	require.NoError(t, n.Bind(o.binding(1, 1)))
	require.Error(t, n.Init())
	require.NoError(t, n.Terminate(token.KindEOS))
	assert.Equal(t, 1, finals)
}

func TestStep_Panic(t *testing.T) {
	o := newOutputs()
	n := node.Processor(func(in any) (any, error) {
		panic("bad input")
	})
	ready(t, n, o.binding(1, 1))
	_, err := n.Step(input(t, o.store, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked: bad input")
}

func TestStep_NotReady(t *testing.T) {
	o := newOutputs()
	n := node.Processor(func(in any) (any, error) { return in, nil })
	require.NoError(t, n.Bind(o.binding(1, 1)))
	_, err := n.Step(input(t, o.store, 1))
	var ce *node.ContractError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, int64(0), o.store.Live())
}

func TestEOSNotify(t *testing.T) {
	o := newOutputs()
	var ended []int
	n, err := node.NewMISO(node.Callables{
		Step: host.StepFunc(func(in any) (any, error) { return in, nil }),
		OnEOS: host.Func(func(_ host.Self, args ...any) (any, error) {
			ended = append(ended, args[0].(int))
			return "flushed", nil
		}),
	})
	require.NoError(t, err)
	ready(t, n, o.binding(2, 1))

	m, err := n.EOSNotify(1)
	require.NoError(t, err)
	assert.Equal(t, "flushed", unbox(t, m))
	assert.Equal(t, []int{1}, ended)

	plain := node.Processor(func(in any) (any, error) { return in, nil })
	ready(t, plain, o.binding(1, 1))
	m, err = plain.EOSNotify(0)
	require.NoError(t, err)
	assert.Equal(t, token.Continue(), tokenOf(t, m))
}

func TestForwarderAndDistributor(t *testing.T) {
	o := newOutputs()
	for _, n := range []*node.Node{node.NewForwarder(), node.NewDistributor()} {
		ready(t, n, o.binding(1, 1))
		in := input(t, o.store, "pass")
		m, err := n.Step(in)
		require.NoError(t, err)
		assert.Equal(t, in.Msg, m)
		assert.Equal(t, "pass", unbox(t, m))
	}
	assert.Equal(t, node.MISO, node.NewForwarder().Arity())
	assert.Equal(t, node.SIMO, node.NewDistributor().Arity())
}

func TestMIMO(t *testing.T) {
	o := newOutputs()
	l := new(lifecycle)
	n, err := node.NewMIMO(node.Callables{
		Step: host.Func(func(self host.Self, args ...any) (any, error) {
			return nil, self.SendOutTo(args[0], self.Channel())
		}),
		Init:     host.InitFunc(func() error { l.inits++; return nil }),
		Finalize: host.InitFunc(func() error { l.finals++; return nil }),
	})
	require.NoError(t, err)
	n.SetName("router")
	assert.Equal(t, "router", n.Name())
	assert.Equal(t, node.MIMO, n.Arity())
	ready(t, n, o.binding(2, 2))

	for ch := 0; ch < 2; ch++ {
		in := input(t, o.store, ch*10)
		in.Channel = ch
		m, err := n.Step(in)
		require.NoError(t, err)
		assert.Equal(t, token.Continue(), tokenOf(t, m))
	}
	assert.Equal(t, []any{0, 10}, o.sent)
	assert.Equal(t, []int{0, 1}, o.to)

	require.NoError(t, n.Terminate(token.KindEOS))
	assert.Equal(t, node.Terminated, n.State())
	assert.Equal(t, 1, l.inits)
	assert.Equal(t, 1, l.finals)
	assert.Equal(t, int64(0), o.store.Live())
}
