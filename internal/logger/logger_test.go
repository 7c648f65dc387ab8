package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetWriter(&buf)
	SetLevel("INFO")
	SetFormat("text")
	t.Cleanup(func() {
		SetWriter(os.Stdout)
		SetLevel("INFO")
		SetFormat("text")
	})
	return &buf
}

func TestLevels(t *testing.T) {
	t.Run("FiltersBelowLevel", func(t *testing.T) {
		buf := reset(t)
		SetLevel("warn")

		Info("hidden")
		Warn("shown %d", 1)

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "[WARN] shown 1")
	})

	t.Run("UnknownLevelIgnored", func(t *testing.T) {
		buf := reset(t)
		SetLevel("verbose")

		Debug("hidden")
		Info("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "[INFO] shown")
	})
}

func TestJSONFormat(t *testing.T) {
	buf := reset(t)
	SetFormat("json")

	Error("fetch failed: %s", "boom")

	var line map[string]string
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "fetch failed: boom", line["msg"])
	assert.NotEmpty(t, line["time"])
}

func TestFileOutput(t *testing.T) {
	reset(t)
	path := filepath.Join(t.TempDir(), "nfsfetch.log")

	require.NoError(t, Configure("debug", "text", path))
	Debug("to file")
	require.NoError(t, SetOutput("stdout"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] to file")
}
