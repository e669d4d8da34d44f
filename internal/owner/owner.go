// Package owner records which composite holds a node or topology.
package owner

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrAttached is returned when claiming something that already has an owner.
var ErrAttached = errors.New("already attached to an owner")

// Claim is embedded by anything that can be placed into at most one topology.
// The zero value is unowned.
type Claim struct {
	mu    sync.Mutex
	owner any
}

// Attach records o as the owner. Attaching to the current owner again fails too,
// so that the same node cannot appear twice inside one topology.
func (c *Claim) Attach(o any) error {
	if o == nil {
		return errors.New("nil owner")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner != nil {
		return ErrAttached
	}
	c.owner = o
	return nil
}

// Detach releases the claim if o is the current owner.
func (c *Claim) Detach(o any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner == o {
		c.owner = nil
	}
}

// Owner returns the current owner or nil.
func (c *Claim) Owner() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

// Owned reports whether there is a current owner.
func (c *Claim) Owned() bool {
	return c.Owner() != nil
}
