package run

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	goruntime "runtime"
	"strconv"
	"strings"

	"github.com/influxdata/flowgraph/runtime"
	"github.com/influxdata/flowgraph/services/logging"
	"github.com/influxdata/flowgraph/services/stats"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Command represents the command executed by "flowgraph run".
type Command struct {
	Version string
	Commit  string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Logger     *zap.Logger
	logService *logging.Service
}

// NewCommand return a new instance of Command.
func NewCommand() *Command {
	return &Command{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run parses the config from args, runs the demo topology to completion and
// reports its statistics.
func (cmd *Command) Run(args ...string) error {
	options, err := cmd.ParseFlags(args...)
	if err != nil {
		return err
	}

	config, err := ParseConfig(FindConfigPath(options.ConfigPath))
	if err != nil {
		return errors.Wrap(err, "parse config")
	}
	// Apply any environment variables on top of the parsed config
	if err := config.ApplyEnvOverrides(); err != nil {
		return errors.Wrap(err, "apply env config")
	}
	options.apply(config)
	if err := config.Validate(); err != nil {
		return err
	}

	cmd.logService = logging.NewService(config.Logging, cmd.Stdout, cmd.Stderr)
	if err := cmd.logService.Open(); err != nil {
		return errors.Wrap(err, "init logging")
	}
	defer cmd.logService.Close()
	cmd.Logger = cmd.logService.Root().With(zap.String("service", "run"))
	cmd.Logger.Info("flowgraph starting",
		zap.String("version", cmd.Version),
		zap.String("commit", cmd.Commit),
		zap.String("go_version", goruntime.Version()),
		zap.Int("gomaxprocs", goruntime.GOMAXPROCS(0)),
	)

	lines, err := cmd.input(config.Demo.Input)
	if err != nil {
		return err
	}

	rt, err := runtime.New(config.Runtime, runtime.WithLogger(cmd.logService.Root().With(zap.String("service", "runtime"))))
	if err != nil {
		return errors.Wrap(err, "create runtime")
	}
	p, err := NewDemo(config.Demo, rt, lines, cmd.Stdout)
	if err != nil {
		return errors.Wrap(err, "build topology")
	}

	statsService := stats.NewService(config.Stats, rt.Store(), cmd.logService.Root().With(zap.String("service", "stats")))
	statsService.Add(p)
	if err := statsService.Open(); err != nil {
		return errors.Wrap(err, "open stats")
	}
	defer statsService.Close()

	if config.Demo.MetricsAddr != "" {
		stop, err := cmd.serveMetrics(config.Demo.MetricsAddr, stats.NewCollector(rt.Store(), p))
		if err != nil {
			return err
		}
		defer stop()
	}

	cmd.Logger.Info("running topology", zap.Stringer("shape", p.DebugInfo()), zap.Int("items", len(lines)))
	if err := p.RunAndWait(); err != nil {
		return errors.Wrap(err, "run")
	}
	statsService.Report()
	fmt.Fprint(cmd.Stderr, p.Stats())
	return p.Close()
}

func (cmd *Command) input(path string) ([]string, error) {
	switch path {
	case "":
		return readLines(strings.NewReader(builtinText))
	case "-":
		return readLines(cmd.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open input")
	}
	defer f.Close()
	return readLines(f)
}

// serveMetrics exposes c and the Go runtime collectors on addr until stop is called.
func (cmd *Command) serveMetrics(addr string, c prometheus.Collector) (stop func(), err error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "listen for metrics")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			cmd.Logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	cmd.Logger.Info("serving metrics", zap.Stringer("addr", l.Addr()))
	return func() { _ = srv.Shutdown(context.Background()) }, nil
}

// Options represents the command line options that can be parsed.
type Options struct {
	ConfigPath string
	Input      string
	Function   string
	Workers    string
	LogFile    string
	LogLevel   string
}

// ParseFlags parses the command line flags from args and returns an options set.
func (cmd *Command) ParseFlags(args ...string) (Options, error) {
	var options Options
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(cmd.Stderr)
	fs.StringVar(&options.ConfigPath, "config", "", "")
	fs.StringVar(&options.Input, "input", "", "")
	fs.StringVar(&options.Function, "function", "", "")
	fs.StringVar(&options.Workers, "workers", "", "")
	fs.StringVar(&options.LogFile, "log-file", "", "")
	fs.StringVar(&options.LogLevel, "log-level", "", "")
	fs.Usage = func() { fmt.Fprintln(cmd.Stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if options.Workers != "" {
		if _, err := strconv.Atoi(options.Workers); err != nil {
			return Options{}, errors.Errorf("invalid -workers %q", options.Workers)
		}
	}
	return options, nil
}

// apply overrides config with the options given on the command line.
func (o Options) apply(c *Config) {
	if o.Input != "" {
		c.Demo.Input = o.Input
	}
	if o.Function != "" {
		c.Demo.Function = o.Function
	}
	if o.Workers != "" {
		c.Demo.Workers, _ = strconv.Atoi(o.Workers)
	}
	if o.LogFile != "" {
		c.Logging.File = o.LogFile
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
}

var usage = `usage: run [flags]

run builds a farm of string functions, feeds it the input lines and prints the results.

        -config <path>
                          Set the path to the configuration file.

        -input <path>
                          Read items from a file, "-" for stdin.

        -function <name>
                          One of upper,lower,reverse.

        -workers <n>
                          Number of farm workers.

        -log-file <path>
                          Write logs to a file.

        -log-level <level>
                          Sets the log level. One of debug,info,warn,error.
`
