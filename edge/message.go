package edge

import (
	"fmt"

	"github.com/influxdata/flowgraph/token"
	"github.com/influxdata/flowgraph/value"
)

// Message is the content of one output slot.
// The only implementations are ValueMessage and TokenMessage.
type Message interface {
	isMessage()
}

// ValueMessage carries the single owner of a boxed payload.
type ValueMessage struct {
	box *value.Box
}

func (ValueMessage) isMessage() {}

// Box returns the boxed payload. Whoever unboxes or discards it owns it.
func (m ValueMessage) Box() *value.Box { return m.box }

func (m ValueMessage) String() string { return "value" }

// TokenMessage carries a control token by value.
type TokenMessage struct {
	tok token.Token
}

func (TokenMessage) isMessage() {}

func (m TokenMessage) Token() token.Token { return m.tok }

func (m TokenMessage) String() string { return m.tok.String() }

// Encode returns the message form of t.
func Encode(t token.Token) Message {
	return TokenMessage{tok: t}
}

// NewValueMessage returns a message transferring ownership of b.
func NewValueMessage(b *value.Box) Message {
	return ValueMessage{box: b}
}

// Decode splits m into either a box or a token.
// isToken is true exactly when m carries a token.
func Decode(m Message) (b *value.Box, t token.Token, isToken bool) {
	switch msg := m.(type) {
	case TokenMessage:
		return nil, msg.tok, true
	case ValueMessage:
		return msg.box, token.Token{}, false
	default:
		return nil, token.Token{}, false
	}
}

// IsToken reports whether m carries a control token.
func IsToken(m Message) bool {
	_, ok := m.(TokenMessage)
	return ok
}

// Release frees the payload carried by m, if any.
// Tokens are plain values and need no release.
func Release(m Message) {
	if vm, ok := m.(ValueMessage); ok && vm.box != nil {
		vm.box.Discard()
	}
}

// Describe returns a short human readable description of m for logs.
func Describe(m Message) string {
	switch msg := m.(type) {
	case TokenMessage:
		return msg.tok.String()
	case ValueMessage:
		return "value"
	default:
		return fmt.Sprintf("unexpected message %T", m)
	}
}
