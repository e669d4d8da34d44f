package topology

import (
	"github.com/pkg/errors"
)

var (
	// ErrDuplicateNode is returned when a node or topology is placed twice.
	ErrDuplicateNode = errors.New("node already placed in a topology")
	// ErrRunning is returned when modifying, closing or starting a running topology.
	ErrRunning = errors.New("topology is running")
	// ErrNotRunning is returned by Wait before the topology was ever run.
	ErrNotRunning = errors.New("topology has not been run")
	// ErrOwned is returned when running a topology nested inside another one.
	ErrOwned = errors.New("topology is nested inside another topology")
	// ErrInvalidStage is returned for stages that cannot be placed.
	ErrInvalidStage = errors.New("invalid stage")
	// ErrNoOutput is returned when connecting after a stage without outputs.
	ErrNoOutput = errors.New("stage has no outputs")
	// ErrWrapAround is returned when a farm cannot close its feedback loop.
	ErrWrapAround = errors.New("invalid wrap around")
)
