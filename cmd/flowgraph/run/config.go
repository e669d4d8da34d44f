package run

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/influxdata/flowgraph/runtime"
	"github.com/influxdata/flowgraph/services/logging"
	"github.com/influxdata/flowgraph/services/stats"
	"github.com/pkg/errors"
)

// Config represents the configuration format for the flowgraph binary.
type Config struct {
	Runtime runtime.Config `toml:"runtime"`
	Logging logging.Config `toml:"logging"`
	Stats   stats.Config   `toml:"stats"`
	Demo    DemoConfig     `toml:"demo"`
}

// DemoConfig shapes the word processing farm the run command builds.
type DemoConfig struct {
	// Input is a file with one item per line, "-" for stdin or empty for a built-in text.
	Input    string `toml:"input"`
	Workers  int    `toml:"workers"`
	Function string `toml:"function"`
	// MetricsAddr serves Prometheus metrics while the run lasts when set.
	MetricsAddr string `toml:"metrics-addr"`
}

// NewConfig returns an instance of Config with reasonable defaults.
func NewConfig() *Config {
	return &Config{
		Runtime: runtime.NewConfig(),
		Logging: logging.NewConfig(),
		Stats:   stats.NewConfig(),
		Demo: DemoConfig{
			Workers:  4,
			Function: "upper",
		},
	}
}

// ParseConfig decodes the file at path over the defaults. A blank path gives the defaults.
func ParseConfig(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, nil
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return c, nil
}

// Validate returns an error if the config is invalid.
func (c *Config) Validate() error {
	if err := c.Runtime.Validate(); err != nil {
		return errors.Wrap(err, "runtime")
	}
	if err := c.Stats.Validate(); err != nil {
		return errors.Wrap(err, "stats")
	}
	if c.Demo.Workers < 1 {
		return errors.New("demo: workers must be at least 1")
	}
	if _, ok := demoFunctions[c.Demo.Function]; !ok {
		return errors.Errorf("demo: unknown function %q", c.Demo.Function)
	}
	return nil
}

func (c *Config) ApplyEnvOverrides() error {
	return c.applyEnvOverrides("FLOWGRAPH", "", reflect.ValueOf(c))
}

func (c *Config) applyEnvOverrides(prefix string, fieldDesc string, spec reflect.Value) error {
	// If we have a pointer, dereference it
	s := spec
	if spec.Kind() == reflect.Ptr {
		s = spec.Elem()
	}

	var value string

	if s.Kind() != reflect.Struct {
		value = os.Getenv(prefix)
		// Skip any fields we don't have a value to set
		if value == "" {
			return nil
		}

		if fieldDesc != "" {
			fieldDesc = " to " + fieldDesc
		}
	}

	fail := func() error {
		return fmt.Errorf("failed to apply %v%v using type %v and value '%v'", prefix, fieldDesc, s.Type().String(), value)
	}

	switch s.Kind() {
	case reflect.String:
		s.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var intValue int64
		if s.Type().Name() == "Duration" {
			dur, err := time.ParseDuration(value)
			if err != nil {
				return fail()
			}
			intValue = dur.Nanoseconds()
		} else {
			var err error
			intValue, err = strconv.ParseInt(value, 0, s.Type().Bits())
			if err != nil {
				return fail()
			}
		}
		s.SetInt(intValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return fail()
		}
		s.SetBool(boolValue)
	case reflect.Struct:
		return c.applyEnvOverridesToStruct(prefix, s)
	}
	return nil
}

func (c *Config) applyEnvOverridesToStruct(prefix string, s reflect.Value) error {
	typeOfSpec := s.Type()
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		if !f.CanSet() {
			continue
		}
		// Hyphens become underscores so shells can set the variable.
		configName := strings.Replace(typeOfSpec.Field(i).Tag.Get("toml"), "-", "_", -1)
		key := strings.ToUpper(prefix + "_" + configName)
		if err := c.applyEnvOverrides(key, typeOfSpec.Field(i).Name, f); err != nil {
			return err
		}
	}
	return nil
}
