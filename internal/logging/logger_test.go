package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	cfgpkg "github.com/taoyao-code/lens-broker/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestInitLogger_File(t *testing.T) {
	cfg := cfgpkg.LoggingConfig{
		Level:  "debug",
		Format: "json",
		File:   cfgpkg.LumberjackConfig{Filename: filepath.Join(t.TempDir(), "bridge.log"), MaxSizeMB: 1},
	}
	logger, err := InitLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	logger.Debug("hello")
	_ = logger.Sync()
}

func TestFrameGate(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gate := NewFrameGate(zap.New(core), false)

	gate.L().Info("frame 1")
	gate.Observe(true)
	assert.True(t, gate.Quiet())
	gate.L().Info("firmware data frame")
	gate.Observe(false)
	gate.L().Info("frame 2")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "frame 1", logs.All()[0].Message)
	assert.Equal(t, "frame 2", logs.All()[1].Message)
}

func TestFrameGate_Verbose(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gate := NewFrameGate(zap.New(core), true)

	gate.Observe(true)
	assert.False(t, gate.Quiet(), "verbose 模式下固件帧仍打印")
	gate.L().Info("firmware data frame")
	assert.Equal(t, 1, logs.Len())
}
