package edge

import (
	"go.uber.org/zap"
)

type logEdge struct {
	e   Edge
	log *zap.Logger
}

// NewLogEdge creates an edge that logs every collected and emitted message at debug level.
//
// This edge is meant for debug sessions, it is enabled with the trace-edges runtime option.
func NewLogEdge(l *zap.Logger, e Edge) Edge {
	return &logEdge{
		e:   e,
		log: l,
	}
}

func (e *logEdge) Collect(m Message) error {
	e.log.Debug("collect", zap.String("message", Describe(m)))
	return e.e.Collect(m)
}

func (e *logEdge) TryCollect(m Message) (bool, error) {
	ok, err := e.e.TryCollect(m)
	if ok {
		e.log.Debug("collect", zap.String("message", Describe(m)))
	}
	return ok, err
}

func (e *logEdge) Emit() (m Message, ok bool) {
	m, ok = e.e.Emit()
	if ok {
		e.log.Debug("emit", zap.String("message", Describe(m)))
	}
	return
}

func (e *logEdge) Close() error {
	e.log.Debug("close")
	return e.e.Close()
}

func (e *logEdge) Abort() {
	e.log.Debug("abort")
	e.e.Abort()
}

func (e *logEdge) Drain(f func(Message)) {
	e.e.Drain(f)
}
