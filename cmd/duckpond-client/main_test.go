package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "duckpond-client dev\n", out.String())
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"run", "--server-url", "http://not-a-socket", "--log-level", "error"})

	assert.Error(t, root.Execute())
}

func TestRunExposesFlags(t *testing.T) {
	run := newRunCmd()
	for _, name := range []string{"server-url", "name", "tick-rate", "drain-mode", "wander", "quack-every", "metrics-addr", "log-level", "log-file", "config"} {
		assert.NotNil(t, run.Flags().Lookup(name), name)
	}
}
