package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixLogger(t *testing.T) {
	var captured []string
	capture := func(format string, args ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, args...))
	}

	logger := NewLogger("engine , ", LogFuncs{
		Infof:  capture,
		Errorf: capture,
	})

	logger.Infof("starting, units: %d", 3)
	logger.Errorf("failed: %v", "boom")
	logger.Debugf("dropped, no debug func configured")

	require.Len(t, captured, 2)
	assert.Equal(t, "engine , starting, units: 3", captured[0])
	assert.Equal(t, "engine , failed: boom", captured[1])
}

func TestNewUnitLogger(t *testing.T) {
	var captured []string
	parent := NewLogger("", LogFuncs{
		Infof: func(format string, args ...interface{}) {
			captured = append(captured, fmt.Sprintf(format, args...))
		},
	})

	unitLogger := NewUnitLogger("device-info", parent)
	unitLogger.Infof("activated")

	require.Len(t, captured, 1)
	assert.Equal(t, "unit: device-info , activated", captured[0])
}

func TestNewZapLogger(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		logger, err := NewZapLogger(DefaultZapConfig())
		require.NoError(t, err)
		require.NotNil(t, logger)

		// Smoke test, output goes to stdout
		logger.Infof("zap logger test message, n: %d", 1)
	})

	t.Run("json_to_file", func(t *testing.T) {
		logFile := t.TempDir() + "/engine.log"
		logger, err := NewZapLogger(ZapConfig{
			Level:  "debug",
			Format: "json",
			Output: logFile,
		})
		require.NoError(t, err)
		logger.Debugf("file output test")
	})

	t.Run("invalid_level", func(t *testing.T) {
		_, err := NewZapLogger(ZapConfig{Level: "loud"})
		assert.Error(t, err)
	})

	t.Run("invalid_format", func(t *testing.T) {
		_, err := NewZapLogger(ZapConfig{Level: "info", Format: "xml"})
		assert.Error(t, err)
	})
}
