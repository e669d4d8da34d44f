package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMain() (*Main, *bytes.Buffer) {
	var out bytes.Buffer
	return &Main{Stdin: strings.NewReader(""), Stdout: &out, Stderr: &out}, &out
}

func TestParseCommandName(t *testing.T) {
	tests := []struct {
		args []string
		name string
		rest []string
	}{
		{nil, "", nil},
		{[]string{"-config", "x"}, "", []string{"-config", "x"}},
		{[]string{"run", "-input", "-"}, "run", []string{"-input", "-"}},
		{[]string{"-h"}, "help", []string{}},
		{[]string{"help", "config"}, "config", []string{"-h"}},
	}
	for _, tc := range tests {
		name, rest := ParseCommandName(tc.args)
		assert.Equal(t, tc.name, name, "%v", tc.args)
		if len(tc.rest) > 0 {
			assert.Equal(t, tc.rest, rest)
		} else {
			assert.Empty(t, rest)
		}
	}
}

func TestMain_Commands(t *testing.T) {
	m, out := newTestMain()
	require.NoError(t, m.Run("version"))
	assert.Contains(t, out.String(), "flowgraph dev (git: unknown)")

	m, out = newTestMain()
	require.NoError(t, m.Run("help"))
	assert.Contains(t, out.String(), "usage: flowgraph")
	assert.Contains(t, out.String(), "run        run the demo topology (default)")

	m, out = newTestMain()
	require.NoError(t, m.Run("config", "-config", os.DevNull))
	assert.Contains(t, out.String(), "[demo]")

	m, _ = newTestMain()
	err := m.Run("dance")
	assert.EqualError(t, err, `unknown command "dance", see 'flowgraph help'`)
}
