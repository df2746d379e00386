package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONOutputCarriesComponentAndSession(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&Config{Level: LevelDebug, Format: FormatJSON, Writer: &buf, Component: "verifier"})
	require.NoError(t, err)

	s := l.NewSession()
	s.Debug("dot product", "len", 64)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "verifier", entry["component"])
	assert.Equal(t, float64(1), entry["session"])
	assert.Equal(t, float64(64), entry["len"])

	buf.Reset()
	l.NewSession().Info("next")
	assert.Contains(t, buf.String(), `"session":2`)
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&Config{Level: LevelWarn, Writer: &buf})
	require.NoError(t, err)
	l.Info("hidden")
	l.Error("shown")
	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.True(t, strings.Contains(out, "shown"))
}

func TestParse(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, lvl)
	_, err = ParseLevel("loud")
	assert.Error(t, err)

	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	_, err = New(&Config{Output: "syslog"})
	assert.Error(t, err)
}
