package edge

import (
	"github.com/pkg/errors"
)

var (
	// ErrAborted is returned from the Edge interface when operations are performed on the edge after it has been aborted.
	ErrAborted = errors.New("edge aborted")
	// ErrClosed is returned when a message is collected on an edge that was already closed.
	ErrClosed = errors.New("edge closed")
)
