package logging

type Config struct {
	// File is a path, STDERR or STDOUT.
	File  string `toml:"file"`
	Level string `toml:"level"`
	// Encoding is console or json.
	Encoding string `toml:"encoding"`
}

func NewConfig() Config {
	return Config{
		File:     "STDERR",
		Level:    "INFO",
		Encoding: "console",
	}
}
