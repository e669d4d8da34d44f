package stats

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	humanize "github.com/dustin/go-humanize"
	"github.com/influxdata/flowgraph/value"
	"go.uber.org/zap"
)

// Service logs the value store and topology statistics at a fixed interval.
type Service struct {
	c      Config
	clock  clock.Clock
	logger *zap.Logger
	store  *value.Store

	mu        sync.Mutex
	reporters []Reporter

	closing chan struct{}
	wg      sync.WaitGroup
}

func NewService(c Config, store *value.Store, l *zap.Logger) *Service {
	return &Service{
		c:      c,
		clock:  clock.New(),
		logger: l,
		store:  store,
	}
}

// WithClock replaces the clock driving the report ticker.
func (s *Service) WithClock(c clock.Clock) *Service {
	s.clock = c
	return s
}

func (s *Service) Add(reporters ...Reporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reporters = append(s.reporters, reporters...)
}

func (s *Service) Open() error {
	if !s.c.Enabled {
		return nil
	}
	s.closing = make(chan struct{})
	ticker := s.clock.Ticker(time.Duration(s.c.Interval))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-s.closing:
				return
			case <-ticker.C:
				s.Report()
			}
		}
	}()
	s.logger.Info("opened service", zap.Stringer("interval", s.c.Interval))
	return nil
}

func (s *Service) Close() error {
	if s.closing == nil {
		return nil
	}
	close(s.closing)
	s.wg.Wait()
	s.closing = nil
	s.logger.Info("closed service")
	return nil
}

// Report logs the current statistics once.
func (s *Service) Report() {
	if s.store != nil {
		s.logger.Info("value store",
			zap.Int64("live", s.store.Live()),
			zap.Int64("peak", s.store.Peak()),
			zap.String("allocated", humanize.Comma(s.store.Allocated())),
		)
	}
	s.mu.Lock()
	reporters := append([]Reporter(nil), s.reporters...)
	s.mu.Unlock()
	for _, r := range reporters {
		st := r.Stats()
		if st.Run == "" {
			continue
		}
		var received int64
		for _, n := range st.Nodes {
			received += n.Received
		}
		s.logger.Info("topology",
			zap.String("topology", st.Topology),
			zap.String("run", st.Run),
			zap.Bool("running", st.Running),
			zap.Duration("duration", st.Duration),
			zap.Int("nodes", len(st.Nodes)),
			zap.String("received", humanize.Comma(received)),
		)
	}
}
