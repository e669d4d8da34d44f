package stats

import (
	"time"

	"github.com/pkg/errors"
)

const DefaultInterval = Duration(10 * time.Second)

type Config struct {
	// Enabled turns on the periodic stats report.
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
}

func NewConfig() Config {
	return Config{
		Enabled:  true,
		Interval: DefaultInterval,
	}
}

func (c Config) Validate() error {
	if c.Enabled && c.Interval <= 0 {
		return errors.New("stats interval must be positive")
	}
	return nil
}

// Duration is a time.Duration that reads and writes itself as text, e.g. "10s".
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		return nil
	}
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", text)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
