package run

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/influxdata/flowgraph/host/ctyhost"
	"github.com/influxdata/flowgraph/node"
	"github.com/influxdata/flowgraph/runtime"
	"github.com/influxdata/flowgraph/topology"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

var demoFunctions = map[string]function.Function{
	"upper":   stdlib.UpperFunc,
	"lower":   stdlib.LowerFunc,
	"reverse": stdlib.ReverseFunc,
}

const builtinText = `the quick brown fox
jumps over
the lazy dog`

// readLines returns the non-empty lines of r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, errors.Wrap(scanner.Err(), "read input")
}

// NewDemo builds the pipeline lines -> farm of function workers -> out.
func NewDemo(c DemoConfig, rt *runtime.Runtime, lines []string, out io.Writer) (*topology.Pipeline, error) {
	fn, ok := demoFunctions[c.Function]
	if !ok {
		return nil, errors.Errorf("unknown function %q", c.Function)
	}

	i := 0
	source, err := node.NewSISO(node.Callables{
		Init: ctyhost.Wrap(function.New(&function.Spec{
			Type: function.StaticReturnType(cty.Bool),
			Impl: func([]cty.Value, cty.Type) (cty.Value, error) {
				i = 0
				return cty.True, nil
			},
		})),
		Step: ctyhost.Wrap(function.New(&function.Spec{
			Type: function.StaticReturnType(cty.String),
			Impl: func([]cty.Value, cty.Type) (cty.Value, error) {
				if i == len(lines) {
					return cty.NullVal(cty.String), nil
				}
				i++
				return cty.StringVal(lines[i-1]), nil
			},
		})),
	})
	if err != nil {
		return nil, err
	}
	source.SetName("lines")

	farm := topology.NewFarm(topology.WithName("workers"))
	for w := 0; w < c.Workers; w++ {
		worker, err := node.NewSISO(node.Callables{Step: ctyhost.Wrap(fn)})
		if err != nil {
			return nil, err
		}
		worker.SetName(fmt.Sprintf("%s%d", c.Function, w))
		if err := farm.AddWorkers(worker); err != nil {
			return nil, err
		}
	}
	if err := farm.AddCollector(nil); err != nil {
		return nil, err
	}

	sink := node.Sink(func(in any) error {
		if v, ok := in.(cty.Value); ok {
			native, err := ctyhost.ToNative(v)
			if err != nil {
				return err
			}
			in = native
		}
		_, err := fmt.Fprintln(out, in)
		return err
	})
	sink.SetName("output")

	p := topology.NewPipeline(topology.WithRuntime(rt), topology.WithName("demo"))
	for _, s := range []topology.Stage{source, farm, sink} {
		if err := p.AddStage(s); err != nil {
			return nil, err
		}
	}
	return p, nil
}
