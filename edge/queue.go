package edge

import (
	"sync"

	"github.com/pkg/errors"
)

// queueEdge is an unbounded Edge. Collect never blocks, which lets it close
// a cycle without the producers and consumers of the cycle waiting on each other.
type queueEdge struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue *ring[Message]
	state edgeState
}

// NewQueueEdge returns an unbounded edge whose buffer starts at size and grows as needed.
func NewQueueEdge(size int) Edge {
	e := &queueEdge{
		queue: newRing[Message](size),
		state: edgeOpen,
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

func (e *queueEdge) Collect(m Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case edgeClosed:
		return ErrClosed
	case edgeAborted:
		return ErrAborted
	}
	e.queue.Push(m)
	e.cond.Signal()
	return nil
}

func (e *queueEdge) TryCollect(m Message) (bool, error) {
	if err := e.Collect(m); err != nil {
		return false, err
	}
	return true, nil
}

func (e *queueEdge) Emit() (Message, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.queue.Len() == 0 && e.state == edgeOpen {
		e.cond.Wait()
	}
	if e.state == edgeAborted {
		return nil, false
	}
	return e.queue.Pop()
}

func (e *queueEdge) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case edgeClosed:
		return errors.New("edge not open cannot close")
	case edgeAborted:
		return nil
	}
	e.state = edgeClosed
	e.cond.Broadcast()
	return nil
}

func (e *queueEdge) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = edgeAborted
	e.cond.Broadcast()
}

func (e *queueEdge) Drain(f func(Message)) {
	e.mu.Lock()
	var pending []Message
	for m, ok := e.queue.Pop(); ok; m, ok = e.queue.Pop() {
		pending = append(pending, m)
	}
	e.mu.Unlock()
	for _, m := range pending {
		f(m)
	}
}
