package logger

import (
	"os"
	"path/filepath"
	"testing"

	"gardenrelay/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestNewInvalidLevel
func TestNewInvalidLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

// go test -v --run TestNewWithFile
func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "relay.log")

	log, err := New(config.LogConfig{
		Level:       "info",
		Format:      "json",
		OutputFile:  path,
		Environment: "prod",
	})
	require.NoError(t, err)

	log.Info("hello")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"env":"prod"`)
}
