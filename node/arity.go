package node

// Arity is the input/output shape of a node.
//
// Arity governs what a node can observe, not how many edges it may have.
// A single-input node placed after several outputs, for example the workers
// of a farm without a collector, receives their values merged into one stream
// and cannot tell them apart. It terminates once every input ended.
// A single-output node feeding several inputs has its values spread by the
// scheduling policy and cannot choose an output.
type Arity int

const (
	SISO Arity = iota
	SIMO
	MISO
	MIMO
)

// MultiInput reports whether the node may see which input a value arrived on.
func (a Arity) MultiInput() bool { return a == MISO || a == MIMO }

// MultiOutput reports whether the node may address its outputs individually.
func (a Arity) MultiOutput() bool { return a == SIMO || a == MIMO }

func (a Arity) String() string {
	switch a {
	case SISO:
		return "SISO"
	case SIMO:
		return "SIMO"
	case MISO:
		return "MISO"
	case MIMO:
		return "MIMO"
	default:
		return "UNKNOWN"
	}
}

// State is a node's lifecycle state.
type State int32

const (
	Created State = iota
	Ready
	// Draining nodes have ended their outputs but still consume input.
	Draining
	Terminated
	// Suspended nodes ended a run with EOS_WEAK and resume without init.
	Suspended
	// Retired nodes ended with EOS_NORESTART and never run callables again.
	Retired
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Ready:
		return "ready"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	case Suspended:
		return "suspended"
	case Retired:
		return "retired"
	default:
		return "unknown"
	}
}
