package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(Options{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	_, err := NewLogger(Options{Level: "info", Format: "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log format")
}

func TestNewLogger_WritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "client.log")

	logger, err := NewLogger(Options{
		Level:      "debug",
		Format:     "console",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	})
	require.NoError(t, err)

	logger.Info("connection established")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "connection established")
}
