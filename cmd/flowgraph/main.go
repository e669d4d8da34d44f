// Command flowgraph runs the demo topology and inspects its configuration.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/influxdata/flowgraph/cmd/flowgraph/run"
	"github.com/pkg/errors"
)

// Set via -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := NewMain().Run(os.Args[1:]...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main holds the streams the sub-commands read and write.
type Main struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func NewMain() *Main {
	return &Main{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

type command struct {
	summary string
	run     func(m *Main, args []string) error
}

var commands = map[string]command{
	"run": {
		summary: "run the demo topology (default)",
		run: func(m *Main, args []string) error {
			cmd := run.NewCommand()
			cmd.Version, cmd.Commit = version, commit
			cmd.Stdin, cmd.Stdout, cmd.Stderr = m.Stdin, m.Stdout, m.Stderr
			return cmd.Run(args...)
		},
	},
	"config": {
		summary: "print the effective configuration",
		run: func(m *Main, args []string) error {
			cmd := run.NewPrintConfigCommand()
			cmd.Stdout, cmd.Stderr = m.Stdout, m.Stderr
			return cmd.Run(args...)
		},
	},
	"version": {
		summary: "print the version and git commit",
		run: func(m *Main, args []string) error {
			fs := flag.NewFlagSet("version", flag.ContinueOnError)
			fs.SetOutput(m.Stderr)
			if err := fs.Parse(args); err != nil {
				return err
			}
			fmt.Fprintf(m.Stdout, "flowgraph %s (git: %s)\n", version, commit)
			return nil
		},
	},
}

// Run dispatches args to a sub-command.
func (m *Main) Run(args ...string) error {
	name, args := ParseCommandName(args)
	switch name {
	case "":
		name = "run"
	case "help":
		m.usage()
		return nil
	}
	cmd, ok := commands[name]
	if !ok {
		return errors.Errorf("unknown command %q, see 'flowgraph help'", name)
	}
	return errors.Wrap(cmd.run(m, args), name)
}

func (m *Main) usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(m.Stdout, "usage: flowgraph [command] [flags]")
	fmt.Fprintln(m.Stdout)
	for _, name := range names {
		fmt.Fprintf(m.Stdout, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(m.Stdout)
	fmt.Fprintln(m.Stdout, "'flowgraph help <command>' shows the flags of a command.")
}

// ParseCommandName splits the sub-command name off args.
// "help <command>" becomes "<command> -h" and a bare "-h" becomes "help".
func ParseCommandName(args []string) (string, []string) {
	if len(args) == 0 {
		return "", args
	}
	switch first := args[0]; {
	case first == "-h":
		return "help", args[1:]
	case first == "help" && len(args) > 1:
		return args[1], append([]string{"-h"}, args[2:]...)
	case strings.HasPrefix(first, "-"):
		return "", args
	default:
		return first, args[1:]
	}
}
