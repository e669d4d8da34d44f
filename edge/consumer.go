package edge

import (
	"sync"
)

// Consumer reads messages off edges and passes them to a receiver.
type Consumer interface {
	// Consume reads messages until every input edge is closed or aborted.
	// An error is returned if the receiver errors.
	Consume() error
}

// MultiReceiver handles messages arriving from several input edges.
// src is the index of the input edge the message arrived on.
type MultiReceiver interface {
	Message(src int, m Message) error
	// Closed is called once input src will deliver no more messages.
	Closed(src int) error
	// Finish is called once every input is closed.
	Finish() error
}

// NewMultiConsumer creates a consumer that merges ins into r.
// Messages are delivered one at a time in arrival order, FIFO per input.
func NewMultiConsumer(ins []Edge, r MultiReceiver) Consumer {
	return &multiConsumer{
		ins:      ins,
		r:        r,
		messages: make(chan srcMessage),
		done:     make(chan struct{}),
	}
}

type multiConsumer struct {
	ins []Edge

	r MultiReceiver

	messages chan srcMessage
	done     chan struct{}
}

type srcMessage struct {
	Src    int
	Msg    Message
	Closed bool
}

func (c *multiConsumer) Consume() error {
	var wg sync.WaitGroup
	for i, in := range c.ins {
		wg.Add(1)
		go func(src int, in Edge) {
			defer wg.Done()
			c.readEdge(src, in)
		}(i, in)
	}
	go func() {
		wg.Wait()
		// Close messages now that all readEdge goroutines have finished.
		close(c.messages)
	}()

	for m := range c.messages {
		var err error
		if m.Closed {
			err = c.r.Closed(m.Src)
		} else {
			err = c.r.Message(m.Src, m.Msg)
		}
		if err != nil {
			c.stop()
			// Wait for the readers so nothing is left reading the inputs.
			for m := range c.messages {
				if !m.Closed {
					Release(m.Msg)
				}
			}
			return err
		}
	}
	return c.r.Finish()
}

// stop aborts the inputs and releases any reader blocked on delivery.
func (c *multiConsumer) stop() {
	close(c.done)
	for _, in := range c.ins {
		in.Abort()
	}
}

func (c *multiConsumer) readEdge(src int, in Edge) {
	for m, ok := in.Emit(); ok; m, ok = in.Emit() {
		select {
		case c.messages <- srcMessage{Src: src, Msg: m}:
		case <-c.done:
			Release(m)
			return
		}
	}
	select {
	case c.messages <- srcMessage{Src: src, Closed: true}:
	case <-c.done:
	}
}
