package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskpilot/internal/model"
)

func TestNewWritesJSONToFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "logs", "taskpilot.log")

	log, err := New(model.LogConfig{Level: "debug", File: path})
	require.NoError(t, err)

	log.WithField("component", "test").Debug("hello")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, ServiceName, entry["service"])
	assert.Equal(t, "test", entry["component"])
	assert.Contains(t, entry, "ts")
}

func TestLevelFromEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, logrus.WarnLevel, parseLevel("debug"))

	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, logrus.ErrorLevel, parseLevel("error"))
	assert.Equal(t, logrus.InfoLevel, parseLevel("nonsense"))
}

func TestNewWithoutFileDiscards(t *testing.T) {
	log, err := New(model.LogConfig{})
	require.NoError(t, err)
	log.Info("dropped")
	assert.NoError(t, log.Close())
}
