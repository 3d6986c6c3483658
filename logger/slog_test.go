package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false, false)

	l.Debug("hidden", "k", 1)
	assert.Zero(t, buf.Len(), "debug must be filtered at info level")

	l.With("port", "/dev/ttyUSB0").Info("chain opened", "actuators", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "chain opened", rec["msg"])
	assert.Equal(t, "/dev/ttyUSB0", rec["port"])
	assert.InDelta(t, 2, rec["actuators"], 0)
	assert.Contains(t, rec, "ts")
}

func TestSlogLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, ErrorLevel, false, true)
	assert.Equal(t, ErrorLevel, l.Level())

	l.Warn("dropped")
	assert.Zero(t, buf.Len())

	child := l.With("axis", "x")
	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, child.Level(), "child shares the parent level")

	child.Debug("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, InfoLevel, ParseLevel("bogus"))
	assert.Equal(t, "warn", WarnLevel.String())
}
