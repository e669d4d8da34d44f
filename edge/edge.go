package edge

import (
	"sync"

	"github.com/pkg/errors"
)

// Edge represents the connection between two nodes that communicate via messages.
// Edge communication is unidirectional and asynchronous.
// Edges are safe for concurrent use.
type Edge interface {
	// Collect instructs the edge to accept a new message, blocking while the edge is full.
	Collect(Message) error
	// TryCollect accepts the message only if the edge has room for it right now.
	TryCollect(Message) (bool, error)
	// Emit blocks until a message is available and returns it or returns false if the edge has been closed or aborted.
	Emit() (Message, bool)
	// Close stops the edge, all messages currently buffered will be processed.
	Close() error
	// Abort immediately stops the edge. Buffered messages stay in place until drained.
	Abort()
	// Drain hands every buffered message to f without blocking.
	Drain(f func(Message))
}

type edgeState int

const (
	edgeOpen edgeState = iota
	edgeClosed
	edgeAborted
)

// channelEdge is an implementation of Edge using channels.
type channelEdge struct {
	aborting  chan struct{}
	abortOnce sync.Once
	messages  chan Message

	// mu keeps Close from closing messages under a pending send.
	mu     sync.RWMutex
	closed bool
}

// NewChannelEdge returns a new bounded edge that uses channels as the underlying transport.
func NewChannelEdge(size int) Edge {
	if size < 0 {
		size = 0
	}
	return &channelEdge{
		aborting: make(chan struct{}),
		messages: make(chan Message, size),
	}
}

func (e *channelEdge) Collect(m Message) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	select {
	case <-e.aborting:
		return ErrAborted
	default:
	}
	select {
	case e.messages <- m:
		return nil
	case <-e.aborting:
		return ErrAborted
	}
}

func (e *channelEdge) TryCollect(m Message) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return false, ErrClosed
	}
	select {
	case <-e.aborting:
		return false, ErrAborted
	default:
	}
	select {
	case e.messages <- m:
		return true, nil
	default:
		return false, nil
	}
}

func (e *channelEdge) Emit() (m Message, ok bool) {
	select {
	case <-e.aborting:
		return nil, false
	default:
	}
	select {
	case m, ok = <-e.messages:
	case <-e.aborting:
	}
	return
}

func (e *channelEdge) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("edge not open cannot close")
	}
	close(e.messages)
	e.closed = true
	return nil
}

// Abort does not take mu so that it can release collectors blocked on a full edge.
func (e *channelEdge) Abort() {
	e.abortOnce.Do(func() {
		close(e.aborting)
	})
}

func (e *channelEdge) Drain(f func(Message)) {
	for {
		select {
		case m, ok := <-e.messages:
			if !ok {
				return
			}
			f(m)
		default:
			return
		}
	}
}
