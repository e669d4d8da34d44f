package host_test

import (
	"testing"

	"github.com/influxdata/flowgraph/host"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapters(t *testing.T) {
	step := host.StepFunc(func(in any) (any, error) {
		return in.(int) * 2, nil
	})
	out, err := step.Call(nil, 21)
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	n := 0
	src := host.SourceFunc(func() (any, error) {
		n++
		return n, nil
	})
	out, err = src.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, out)

	var got []any
	sink := host.SinkFunc(func(in any) error {
		got = append(got, in)
		return nil
	})
	out, err = sink.Call(nil, "a")
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, []any{"a"}, got)

	boom := errors.New("boom")
	_, err = host.InitFunc(func() error { return boom }).Call(nil)
	assert.Equal(t, boom, err)

	var ended []int
	onEOS := host.EOSFunc(func(src int) error {
		ended = append(ended, src)
		return nil
	})
	_, err = onEOS.Call(nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, ended)
}

func TestStepFunc_NoInput(t *testing.T) {
	step := host.StepFunc(func(in any) (any, error) {
		return in, nil
	})
	out, err := step.Call(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
