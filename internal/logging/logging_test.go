package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBuildHonoursLevel(t *testing.T) {
	logger, cleanup, err := Build(Params{Level: "warn", AppEnv: "production"})
	require.NoError(t, err)
	defer cleanup()

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestBuildDevelopmentDefaultsToDebug(t *testing.T) {
	logger, cleanup, err := Build(Params{AppEnv: "local"})
	require.NoError(t, err)
	defer cleanup()

	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestBuildRejectsUnknownLevel(t *testing.T) {
	_, _, err := Build(Params{Level: "loud"})
	assert.Error(t, err)
}

func TestBuildTeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duckpond.log")
	logger, cleanup, err := Build(Params{Level: "info", AppEnv: "production", File: path})
	require.NoError(t, err)

	logger.Info("quack", zap.String("pond", "test"))
	cleanup()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), `"msg":"quack"`)
	assert.Contains(t, string(contents), `"pond":"test"`)
}
