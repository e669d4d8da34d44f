// Package logging builds the process wide zap logger from configuration.
package logging

import (
	"io"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Service struct {
	c      Config
	stdout io.Writer
	stderr io.Writer
	closer io.Closer
	level  zap.AtomicLevel
	root   *zap.Logger
}

func NewService(c Config, stdout, stderr io.Writer) *Service {
	return &Service{
		c:      c,
		stdout: stdout,
		stderr: stderr,
		level:  zap.NewAtomicLevel(),
		root:   zap.NewNop(),
	}
}

func (s *Service) Open() error {
	var output io.Writer
	switch s.c.File {
	case "STDERR":
		output = s.stderr
	case "STDOUT":
		output = s.stdout
	default:
		dir := path.Dir(s.c.File)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
		f, err := os.OpenFile(s.c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return err
		}
		output = f
		s.closer = f
	}

	// Set level from configuration
	if err := s.SetLevel(s.c.Level); err != nil {
		return err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	switch s.c.Encoding {
	case "", "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return errors.Errorf("unknown log encoding %s", s.c.Encoding)
	}

	s.root = zap.New(zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(output)), s.level))
	return nil
}

func (s *Service) Close() error {
	// Sync fails on terminals, nothing is lost by ignoring it.
	_ = s.root.Sync()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Root is the logger every component derives its logger from.
func (s *Service) Root() *zap.Logger {
	return s.root
}

func (s *Service) SetLevel(level string) error {
	switch strings.ToUpper(level) {
	case "DEBUG":
		s.level.SetLevel(zap.DebugLevel)
	case "INFO":
		s.level.SetLevel(zap.InfoLevel)
	case "WARN":
		s.level.SetLevel(zap.WarnLevel)
	case "ERROR":
		s.level.SetLevel(zap.ErrorLevel)
	default:
		return errors.Errorf("unknown logging level %s", level)
	}
	return nil
}
