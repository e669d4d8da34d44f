package runtime

import (
	"github.com/influxdata/flowgraph/value"
	"github.com/pkg/errors"
)

const (
	// DefaultEdgeBufferSize is the capacity of forward edges.
	DefaultEdgeBufferSize = 1000
	// DefaultFeedbackQueueSize is the initial capacity of feedback edges, which grow as needed.
	DefaultFeedbackQueueSize = 64

	AllocatorHeap = "heap"
	AllocatorPool = "pool"

	SchedulingRoundRobin = "round-robin"
	SchedulingOnDemand   = "on-demand"
)

type Config struct {
	EdgeBufferSize    int    `toml:"edge-buffer-size"`
	FeedbackQueueSize int    `toml:"feedback-queue-size"`
	Allocator         string `toml:"allocator"`
	// MaxLiveValues caps the boxes alive at once, 0 means unlimited.
	MaxLiveValues int64  `toml:"max-live-values"`
	Scheduling    string `toml:"scheduling"`
	// TraceEdges logs every message crossing an edge at debug level.
	TraceEdges bool `toml:"trace-edges"`
}

func NewConfig() Config {
	return Config{
		EdgeBufferSize:    DefaultEdgeBufferSize,
		FeedbackQueueSize: DefaultFeedbackQueueSize,
		Allocator:         AllocatorHeap,
		Scheduling:        SchedulingRoundRobin,
	}
}

func (c Config) Validate() error {
	if c.EdgeBufferSize < 0 {
		return errors.New("edge-buffer-size must not be negative")
	}
	if c.FeedbackQueueSize < 0 {
		return errors.New("feedback-queue-size must not be negative")
	}
	if c.MaxLiveValues < 0 {
		return errors.New("max-live-values must not be negative")
	}
	switch c.Allocator {
	case AllocatorHeap, AllocatorPool:
	default:
		return errors.Errorf("unknown allocator %q", c.Allocator)
	}
	if _, err := ParsePolicy(c.Scheduling); err != nil {
		return err
	}
	return nil
}

// newStore builds the value store described by c.
func (c Config) newStore() *value.Store {
	var a value.Allocator = value.HeapAllocator{}
	if c.Allocator == AllocatorPool {
		a = value.NewPoolAllocator()
	}
	if c.MaxLiveValues > 0 {
		a = value.NewLimitAllocator(a, c.MaxLiveValues)
	}
	return value.NewStore(a)
}
