package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/influxdata/flowgraph/services/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Levels(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := logging.NewConfig()
	c.Level = "warn"
	s := logging.NewService(c, &stdout, &stderr)
	require.NoError(t, s.Open())

	s.Root().Info("hidden")
	s.Root().Warn("shown")
	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "shown")
	assert.Empty(t, stdout.String())

	require.NoError(t, s.SetLevel("debug"))
	s.Root().Debug("now visible")
	assert.Contains(t, stderr.String(), "now visible")
	assert.Error(t, s.SetLevel("loud"))
	require.NoError(t, s.Close())
}

func TestService_JSONFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "flowgraph.log")
	s := logging.NewService(logging.Config{File: file, Level: "INFO", Encoding: "json"}, nil, nil)
	require.NoError(t, s.Open())
	s.Root().Info("hello")
	require.NoError(t, s.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "info", entry["level"])
}

func TestService_BadConfig(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, logging.NewService(logging.Config{File: "STDOUT", Level: "INFO", Encoding: "xml"}, &out, &out).Open())
	assert.Error(t, logging.NewService(logging.Config{File: "STDOUT", Level: "chatty"}, &out, &out).Open())
}
