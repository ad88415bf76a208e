package logging

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("queueview", "warn", &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "queueview")
}

func TestNewFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New("queueview", "nonsense", &buf)

	logger.Debug().Msg("debug line")
	logger.Info().Msg("info line")

	assert.NotContains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "info line")
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.log")
	logger, closer, err := NewFile("queueview", "debug", path)
	require.NoError(t, err)
	logger.Debug().Msg("to file")
	require.NoError(t, closer.Close())

	_, _, err = NewFile("queueview", "debug", filepath.Join(t.TempDir(), "missing", "x.log"))
	assert.Error(t, err)
}
