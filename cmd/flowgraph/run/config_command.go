package run

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// PrintConfigCommand represents the command executed by "flowgraph config".
type PrintConfigCommand struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewPrintConfigCommand return a new instance of PrintConfigCommand.
func NewPrintConfigCommand() *PrintConfigCommand {
	return &PrintConfigCommand{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run parses and prints the current config loaded.
func (cmd *PrintConfigCommand) Run(args ...string) error {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(cmd.Stderr)
	configPath := fs.String("config", "", "")
	fs.Usage = func() { fmt.Fprintln(cmd.Stderr, printConfigUsage) }
	if err := fs.Parse(args); err != nil {
		return err
	}

	config, err := ParseConfig(FindConfigPath(*configPath))
	if err != nil {
		return errors.Wrap(err, "parse config")
	}
	// Apply any environment variables on top of the parsed config
	if err := config.ApplyEnvOverrides(); err != nil {
		return errors.Wrap(err, "apply env config")
	}
	if err := config.Validate(); err != nil {
		return errors.Wrap(err, "to generate a valid configuration file run `flowgraph config > flowgraph.conf`")
	}
	return toml.NewEncoder(cmd.Stdout).Encode(config)
}

// FindConfigPath returns the config path specified or searches for a valid config path.
// It will return a path by searching in this order:
//   1. The given configPath
//   2. The environment variable FLOWGRAPH_CONFIG_PATH
//   3. The first non empty flowgraph.conf file in ~/.flowgraph/ or /etc/flowgraph/
func FindConfigPath(configPath string) string {
	if configPath != "" {
		if configPath == os.DevNull {
			return ""
		}
		return configPath
	} else if envVar := os.Getenv("FLOWGRAPH_CONFIG_PATH"); envVar != "" {
		return envVar
	}

	for _, path := range []string{
		os.ExpandEnv("${HOME}/.flowgraph/flowgraph.conf"),
		"/etc/flowgraph/flowgraph.conf",
	} {
		if fi, err := os.Stat(path); err == nil && fi.Size() != 0 {
			return path
		}
	}
	return ""
}

var printConfigUsage = `usage: config

	config displays the default configuration
`
