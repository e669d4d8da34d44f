package runtime

import (
	"runtime"

	"github.com/influxdata/flowgraph/edge"
	"github.com/influxdata/flowgraph/node"
	"github.com/influxdata/flowgraph/token"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// driver runs one node for one execution. It implements edge.MultiReceiver.
type driver struct {
	exec *Execution
	node node.Runnable
	log  *zap.Logger

	ins    []edge.StatsEdge
	outs   []edge.StatsEdge
	router router

	feedbackOnly bool

	// eos records how each input ended, the zero Kind while it is open.
	eos      []token.Kind
	eosCount int

	retired     bool
	initialized bool
	terminated  bool
	outputsDone bool
}

func (d *driver) run() (err error) {
	defer func() {
		// Handle panic outside of the node callables
		if r := recover(); r != nil {
			trace := make([]byte, 1024)
			n := runtime.Stack(trace, false)
			err = errors.Errorf("node %s: %v: Trace:%s", d.node.Name(), r, trace[:n])
		}
		// Aborted edges only echo an error reported by another node.
		aborted := err != nil && errors.Is(err, edge.ErrAborted)
		if err != nil {
			if !aborted {
				d.log.Error("node failed", zap.Error(err))
			}
			d.exec.abort()
			if d.initialized && !d.terminated {
				d.terminated = true
				if terr := d.node.Terminate(token.KindEOS); terr != nil {
					d.log.Error("failed to finalize node", zap.Error(terr))
				}
			}
		}
		// Always close output edges
		d.endOutputs(token.EOS())
		if aborted {
			err = nil
		}
	}()

	if d.node.State() == node.Retired {
		d.log.Debug("node retired, passing end of stream")
		d.retired = true
		d.terminated = true
		if err := d.endOutputs(token.EOS()); err != nil {
			return err
		}
		return d.consume()
	}

	if err := d.node.Init(); err != nil {
		d.terminated = true
		if terr := d.node.Terminate(token.KindEOS); terr != nil {
			d.log.Error("failed to finalize node", zap.Error(terr))
		}
		return err
	}
	d.initialized = true
	d.log.Debug("node ready", zap.Int("inputs", len(d.ins)), zap.Int("outputs", len(d.outs)))

	if len(d.ins) == 0 {
		return d.runSource()
	}
	if d.feedbackOnly {
		// Nothing arrives on a cycle until the node starts it.
		m, err := d.node.Step(node.NoInput)
		if err != nil {
			return err
		}
		if err := d.handle(m); err != nil {
			return err
		}
	}
	return d.consume()
}

func (d *driver) consume() error {
	ins := make([]edge.Edge, len(d.ins))
	for i := range d.ins {
		ins[i] = d.ins[i]
	}
	return edge.NewMultiConsumer(ins, d).Consume()
}

func (d *driver) runSource() error {
	for !d.terminated {
		if d.exec.aborted() {
			return edge.ErrAborted
		}
		m, err := d.node.Step(node.NoInput)
		if err != nil {
			return err
		}
		if err := d.handle(m); err != nil {
			return err
		}
	}
	return nil
}

// handle acts on a message produced by the node.
func (d *driver) handle(m edge.Message) error {
	_, tok, isToken := edge.Decode(m)
	if !isToken {
		return d.send(m)
	}
	switch tok.Kind() {
	case token.KindContinue:
		return nil
	case token.KindTag:
		return d.send(m)
	case token.KindTerminateOutput:
		d.log.Debug("terminating output")
		return d.endOutputs(token.EOS())
	case token.KindEOS, token.KindEOSNoRestart, token.KindEOSWeak:
		return d.terminate(tok.Kind())
	default:
		return errors.Errorf("node %s produced unexpected token %s", d.node.Name(), tok)
	}
}

// terminate ends the node's run. Input keeps being drained afterwards.
func (d *driver) terminate(k token.Kind) error {
	if d.terminated {
		return nil
	}
	d.terminated = true
	d.log.Debug("node terminating", zap.Stringer("eos", k))
	err := d.node.Terminate(k)
	eos := token.EOS()
	if k == token.KindEOSWeak {
		eos = token.EOSWeak()
	}
	if oerr := d.endOutputs(eos); err == nil {
		err = oerr
	}
	return err
}

// endOutputs sends eos on every output and closes it, once.
func (d *driver) endOutputs(eos token.Token) error {
	if d.outputsDone {
		return nil
	}
	d.outputsDone = true
	outs := make([]edge.Edge, len(d.outs))
	for i := range d.outs {
		outs[i] = d.outs[i]
	}
	err := edge.CloseAll(outs, eos)
	if d.exec.aborted() {
		return nil
	}
	return err
}

func (d *driver) send(m edge.Message) error {
	if d.outputsDone || len(d.outs) == 0 {
		edge.Release(m)
		return nil
	}
	var err error
	if _, tok, isToken := edge.Decode(m); isToken {
		outs := make([]edge.Edge, len(d.outs))
		for i := range d.outs {
			outs[i] = d.outs[i]
		}
		err = edge.Broadcast(outs, tok)
	} else {
		err = d.router.route(m)
	}
	if err != nil {
		edge.Release(m)
	}
	return err
}

func (d *driver) sendTo(m edge.Message, idx int) error {
	if d.outputsDone {
		edge.Release(m)
		return nil
	}
	if idx < 0 || idx >= len(d.outs) {
		edge.Release(m)
		return errors.Errorf("node %s: output index %d out of range", d.node.Name(), idx)
	}
	err := d.outs[idx].Collect(m)
	if err != nil {
		edge.Release(m)
	}
	return err
}

func (d *driver) Message(src int, m edge.Message) error {
	if d.terminated {
		edge.Release(m)
		return nil
	}
	_, tok, isToken := edge.Decode(m)
	if isToken {
		switch {
		case tok.IsEOS():
			return d.inputEnded(src, tok.Kind())
		case tok.Kind() != token.KindTag:
			// only end of stream and tags travel on edges
			return nil
		}
	}
	res, err := d.node.Step(node.Input{Msg: m, Channel: src})
	if err != nil {
		return err
	}
	return d.handle(res)
}

func (d *driver) Closed(src int) error {
	return d.inputEnded(src, token.KindEOS)
}

func (d *driver) inputEnded(src int, k token.Kind) error {
	if d.eos[src] != 0 {
		return nil
	}
	d.eos[src] = k
	d.eosCount++
	if d.terminated {
		return nil
	}
	res, err := d.node.EOSNotify(src)
	if err != nil {
		return err
	}
	if err := d.handle(res); err != nil {
		return err
	}
	if d.eosCount == len(d.ins) {
		return d.terminate(d.inputsEndKind())
	}
	return nil
}

// inputsEndKind is EOS_WEAK when every input ended weakly and EOS otherwise.
func (d *driver) inputsEndKind() token.Kind {
	for _, k := range d.eos {
		if k != token.KindEOSWeak {
			return token.KindEOS
		}
	}
	return token.KindEOSWeak
}

func (d *driver) Finish() error {
	if d.retired {
		return nil
	}
	return d.terminate(token.KindEOS)
}
