package node

import (
	"fmt"
)

// ContractError reports a callable or caller breaking the node contract.
// It is fatal for the run.
type ContractError struct {
	Node   string
	Op     string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("node %s: %s: %s", e.Node, e.Op, e.Reason)
}

func contractErr(node, op, reason string) error {
	return &ContractError{Node: node, Op: op, Reason: reason}
}
