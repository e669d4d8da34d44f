package edge

import (
	"github.com/influxdata/flowgraph/token"
)

// Broadcast collects the token t on every edge in outs.
// Tokens are copied by value, so every edge receives its own message.
func Broadcast(outs []Edge, t token.Token) error {
	msg := Encode(t)
	for _, out := range outs {
		if err := out.Collect(msg); err != nil {
			return err
		}
	}
	return nil
}

// CloseAll sends the end-of-stream token eos on every edge in outs and then closes it.
// The first error is returned after every edge has been closed.
func CloseAll(outs []Edge, eos token.Token) error {
	var firstErr error
	msg := Encode(eos)
	for _, out := range outs {
		if err := out.Collect(msg); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := out.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
