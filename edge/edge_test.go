package edge_test

import (
	"sync"
	"testing"
	"time"

	"github.com/influxdata/flowgraph/edge"
	"github.com/influxdata/flowgraph/token"
	"github.com/influxdata/flowgraph/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultEdgeBufferSize = 1000

func box(t *testing.T, s *value.Store, v any) edge.Message {
	t.Helper()
	b, err := s.Box(v)
	require.NoError(t, err)
	return edge.NewValueMessage(b)
}

func TestDecode_MixedStream(t *testing.T) {
	s := value.NewStore(nil)
	stream := []edge.Message{
		box(t, s, 1),
		edge.Encode(token.Continue()),
		box(t, s, "two"),
		edge.Encode(token.MustTag(42)),
		box(t, s, 3.0),
		edge.Encode(token.EOS()),
	}

	var values []any
	var tokens []token.Token
	for _, m := range stream {
		b, tok, isToken := edge.Decode(m)
		assert.Equal(t, isToken, edge.IsToken(m))
		if isToken {
			assert.Nil(t, b)
			tokens = append(tokens, tok)
			continue
		}
		v, err := b.Unbox()
		require.NoError(t, err)
		values = append(values, v)
	}
	assert.Equal(t, []any{1, "two", 3.0}, values)
	assert.Equal(t, []token.Token{token.Continue(), token.MustTag(42), token.EOS()}, tokens)
	assert.Equal(t, int64(0), s.Live())
}

func TestChannelEdge_FIFO(t *testing.T) {
	s := value.NewStore(nil)
	e := edge.NewChannelEdge(defaultEdgeBufferSize)

	go func() {
		for i := 0; i < 100; i++ {
			if err := e.Collect(box(t, s, i)); err != nil {
				t.Error(err)
				return
			}
		}
		e.Close()
	}()

	i := 0
	for m, ok := e.Emit(); ok; m, ok = e.Emit() {
		b, _, isToken := edge.Decode(m)
		require.False(t, isToken)
		v, err := b.Unbox()
		require.NoError(t, err)
		assert.Equal(t, i, v)
		i++
	}
	assert.Equal(t, 100, i)
	assert.Equal(t, edge.ErrClosed, e.Collect(edge.Encode(token.EOS())))
	assert.Error(t, e.Close())
}

func TestChannelEdge_TryCollect(t *testing.T) {
	e := edge.NewChannelEdge(1)
	ok, err := e.TryCollect(edge.Encode(token.Continue()))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.TryCollect(edge.Encode(token.Continue()))
	require.NoError(t, err)
	assert.False(t, ok)

	e.Abort()
	_, err = e.TryCollect(edge.Encode(token.Continue()))
	assert.Equal(t, edge.ErrAborted, err)
}

func TestChannelEdge_AbortReleasesBlockedCollect(t *testing.T) {
	e := edge.NewChannelEdge(0)
	errC := make(chan error, 1)
	go func() {
		errC <- e.Collect(edge.Encode(token.EOS()))
	}()

	time.Sleep(10 * time.Millisecond)
	e.Abort()
	select {
	case err := <-errC:
		assert.Equal(t, edge.ErrAborted, err)
	case <-time.After(5 * time.Second):
		t.Fatal("collect still blocked after abort")
	}
	_, ok := e.Emit()
	assert.False(t, ok)
	// Abort is idempotent
	e.Abort()
}

func TestChannelEdge_DrainAfterAbort(t *testing.T) {
	s := value.NewStore(nil)
	e := edge.NewChannelEdge(10)
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Collect(box(t, s, i)))
	}
	require.NoError(t, e.Collect(edge.Encode(token.EOS())))
	e.Abort()

	drained := 0
	e.Drain(func(m edge.Message) {
		drained++
		edge.Release(m)
	})
	assert.Equal(t, 6, drained)
	assert.Equal(t, int64(0), s.Live())
}

func TestQueueEdge_Unbounded(t *testing.T) {
	s := value.NewStore(nil)
	e := edge.NewQueueEdge(4)
	const n = 10000
	for i := 0; i < n; i++ {
		require.NoError(t, e.Collect(box(t, s, i)))
	}
	require.NoError(t, e.Close())
	assert.Equal(t, edge.ErrClosed, e.Collect(edge.Encode(token.EOS())))

	i := 0
	for m, ok := e.Emit(); ok; m, ok = e.Emit() {
		b, _, _ := edge.Decode(m)
		v, err := b.Unbox()
		require.NoError(t, err)
		require.Equal(t, i, v)
		i++
	}
	assert.Equal(t, n, i)
	assert.Equal(t, int64(0), s.Live())
}

func TestQueueEdge_EmitBlocksUntilCollect(t *testing.T) {
	e := edge.NewQueueEdge(0)
	got := make(chan edge.Message, 1)
	go func() {
		m, _ := e.Emit()
		got <- m
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, e.Collect(edge.Encode(token.MustTag(16))))
	select {
	case m := <-got:
		_, tok, isToken := edge.Decode(m)
		assert.True(t, isToken)
		assert.Equal(t, token.MustTag(16), tok)
	case <-time.After(5 * time.Second):
		t.Fatal("emit never returned")
	}
}

func TestQueueEdge_Abort(t *testing.T) {
	s := value.NewStore(nil)
	e := edge.NewQueueEdge(0)
	require.NoError(t, e.Collect(box(t, s, "a")))
	e.Abort()
	_, ok := e.Emit()
	assert.False(t, ok)
	assert.Equal(t, edge.ErrAborted, e.Collect(edge.Encode(token.EOS())))
	e.Drain(edge.Release)
	assert.Equal(t, int64(0), s.Live())
}

func TestStatsEdge(t *testing.T) {
	s := value.NewStore(nil)
	e := edge.NewStatsEdge(edge.NewChannelEdge(defaultEdgeBufferSize))
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Collect(box(t, s, i)))
	}
	require.NoError(t, e.Collect(edge.Encode(token.EOS())))
	require.NoError(t, e.Close())
	for m, ok := e.Emit(); ok; m, ok = e.Emit() {
		edge.Release(m)
	}
	assert.Equal(t, int64(3), e.Collected())
	assert.Equal(t, int64(3), e.Emitted())
	assert.Equal(t, int64(1), e.Tokens())
}

func TestCloseAll(t *testing.T) {
	outs := []edge.Edge{edge.NewChannelEdge(1), edge.NewQueueEdge(1)}
	require.NoError(t, edge.CloseAll(outs, token.EOSWeak()))
	for _, out := range outs {
		m, ok := out.Emit()
		require.True(t, ok)
		_, tok, isToken := edge.Decode(m)
		assert.True(t, isToken)
		assert.Equal(t, token.EOSWeak(), tok)
		_, ok = out.Emit()
		assert.False(t, ok)
	}
}

type recordingReceiver struct {
	mu       sync.Mutex
	bySrc    map[int][]any
	closed   []int
	finished bool
	failOn   any
}

func (r *recordingReceiver) Message(src int, m edge.Message) error {
	b, tok, isToken := edge.Decode(m)
	var v any = tok
	if !isToken {
		var err error
		if v, err = b.Unbox(); err != nil {
			return err
		}
	}
	if r.failOn != nil && v == r.failOn {
		return assert.AnError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySrc[src] = append(r.bySrc[src], v)
	return nil
}

func (r *recordingReceiver) Closed(src int) error {
	r.closed = append(r.closed, src)
	return nil
}

func (r *recordingReceiver) Finish() error {
	r.finished = true
	return nil
}

func TestMultiConsumer_PerInputFIFO(t *testing.T) {
	s := value.NewStore(nil)
	ins := []edge.Edge{edge.NewChannelEdge(4), edge.NewChannelEdge(4), edge.NewQueueEdge(4)}
	const n = 200
	for src, in := range ins {
		go func(src int, in edge.Edge) {
			for i := 0; i < n; i++ {
				if err := in.Collect(box(t, s, src*n+i)); err != nil {
					t.Error(err)
				}
			}
			in.Close()
		}(src, in)
	}

	r := &recordingReceiver{bySrc: make(map[int][]any)}
	require.NoError(t, edge.NewMultiConsumer(ins, r).Consume())

	for src := range ins {
		want := make([]any, n)
		for i := range want {
			want[i] = src*n + i
		}
		assert.Equal(t, want, r.bySrc[src])
	}
	assert.ElementsMatch(t, []int{0, 1, 2}, r.closed)
	assert.True(t, r.finished)
	assert.Equal(t, int64(0), s.Live())
}

func TestMultiConsumer_NoInputs(t *testing.T) {
	r := &recordingReceiver{bySrc: make(map[int][]any)}
	require.NoError(t, edge.NewMultiConsumer(nil, r).Consume())
	assert.True(t, r.finished)
}

func TestMultiConsumer_ReceiverErrorAbortsInputs(t *testing.T) {
	s := value.NewStore(nil)
	ins := []edge.Edge{edge.NewChannelEdge(defaultEdgeBufferSize), edge.NewChannelEdge(defaultEdgeBufferSize)}
	for src, in := range ins {
		for i := 0; i < 10; i++ {
			require.NoError(t, in.Collect(box(t, s, src*10+i)))
		}
	}

	r := &recordingReceiver{bySrc: make(map[int][]any), failOn: 3}
	err := edge.NewMultiConsumer(ins, r).Consume()
	assert.Equal(t, assert.AnError, err)
	assert.False(t, r.finished)

	for _, in := range ins {
		assert.Equal(t, edge.ErrAborted, in.Collect(edge.Encode(token.EOS())))
		in.Drain(edge.Release)
	}
	assert.Equal(t, int64(0), s.Live())
}
