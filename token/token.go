/*
Package token defines the closed set of control signals that travel along
edges next to payload values.

A Token is a plain comparable value. It is never stored in a boxed value and
never dereferenced as one: producers hand tokens to the edge layer directly
and consumers branch on the message type before touching a payload.
*/
package token

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies a control signal.
type Kind uint8

const (
	kindInvalid Kind = iota
	// KindEOS ends the stream. The node may be run again when its topology restarts.
	KindEOS
	// KindEOSNoRestart ends the stream and retires the node for every later run.
	KindEOSNoRestart
	// KindEOSWeak ends the current run only. The node keeps its state and is
	// resumed without init when the topology runs again.
	KindEOSWeak
	// KindContinue means nothing is emitted for this step.
	KindContinue
	// KindTerminateOutput closes the node's outputs while it keeps consuming input.
	KindTerminateOutput
	// KindTag is a user defined signal carrying a number >= MinTag.
	KindTag
)

// MinTag is the smallest user tag. Values below it are reserved.
const MinTag uint64 = 16

// ErrInvalidTag is returned when a tag number falls in the reserved range.
var ErrInvalidTag = errors.New("tag below reserved minimum")

func (k Kind) String() string {
	switch k {
	case KindEOS:
		return "EOS"
	case KindEOSNoRestart:
		return "EOS_NORESTART"
	case KindEOSWeak:
		return "EOS_WEAK"
	case KindContinue:
		return "CONTINUE"
	case KindTerminateOutput:
		return "TERMINATE_OUTPUT"
	case KindTag:
		return "TAG"
	default:
		return "INVALID"
	}
}

// Token is a control signal. The zero Token is invalid.
type Token struct {
	kind Kind
	tag  uint64
}

func EOS() Token             { return Token{kind: KindEOS} }
func EOSNoRestart() Token    { return Token{kind: KindEOSNoRestart} }
func EOSWeak() Token         { return Token{kind: KindEOSWeak} }
func Continue() Token        { return Token{kind: KindContinue} }
func TerminateOutput() Token { return Token{kind: KindTerminateOutput} }

// NewTag returns a user tag token for n.
func NewTag(n uint64) (Token, error) {
	if n < MinTag {
		return Token{}, errors.Wrapf(ErrInvalidTag, "tag %d (minimum %d)", n, MinTag)
	}
	return Token{kind: KindTag, tag: n}, nil
}

// MustTag is like NewTag but panics on a reserved tag number.
func MustTag(n uint64) Token {
	t, err := NewTag(n)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Token) Kind() Kind { return t.kind }

// Tag returns the tag number and whether t is a tag token.
func (t Token) Tag() (uint64, bool) {
	if t.kind != KindTag {
		return 0, false
	}
	return t.tag, true
}

// Valid reports whether t was built by one of the constructors.
func (t Token) Valid() bool {
	return t.kind > kindInvalid && t.kind <= KindTag
}

// IsEOS reports whether t is any of the end-of-stream variants.
func (t Token) IsEOS() bool {
	switch t.kind {
	case KindEOS, KindEOSNoRestart, KindEOSWeak:
		return true
	}
	return false
}

func (t Token) String() string {
	if t.kind == KindTag {
		return fmt.Sprintf("TAG(%d)", t.tag)
	}
	return t.kind.String()
}

// Parse is the inverse of Token.String.
func Parse(s string) (Token, error) {
	switch s {
	case "EOS":
		return EOS(), nil
	case "EOS_NORESTART":
		return EOSNoRestart(), nil
	case "EOS_WEAK":
		return EOSWeak(), nil
	case "CONTINUE":
		return Continue(), nil
	case "TERMINATE_OUTPUT":
		return TerminateOutput(), nil
	}
	if strings.HasPrefix(s, "TAG(") && strings.HasSuffix(s, ")") {
		n, err := strconv.ParseUint(s[len("TAG("):len(s)-1], 10, 64)
		if err != nil {
			return Token{}, errors.Wrapf(err, "invalid tag token %q", s)
		}
		return NewTag(n)
	}
	return Token{}, errors.Errorf("unknown token %q", s)
}
