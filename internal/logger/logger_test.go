package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var out []map[string]interface{}
	dec := json.NewDecoder(buf)
	for dec.More() {
		var entry map[string]interface{}
		require.NoError(t, dec.Decode(&entry))
		out = append(out, entry)
	}

	return out
}

func TestLogRedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, DebugLevel)

	log.Info("login succeeded", String("username", "carol"), String("password", "hunter2"), String("session_key", "deadbeef"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "carol", lines[0]["username"])
	assert.Equal(t, "[redacted]", lines[0]["password"])
	assert.Equal(t, "[redacted]", lines[0]["session_key"])
}

func TestLogRedactsSensitiveFieldsFromBaseFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, DebugLevel)

	scoped := log.WithFields(String("access_token", "topsecret"))
	scoped.Info("token issued")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "[redacted]", lines[0]["access_token"])
}

func TestWithSessionIDScopesSubsequentEntries(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, DebugLevel)

	log.WithSessionID("session-123").Info("login succeeded")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "session-123", lines[0]["session_id"])
}

func TestSetThrottleSuppressesRepeatWarnings(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, DebugLevel)
	log.SetThrottle(time.Hour)

	log.Warn("bad password")
	log.Warn("bad password")
	log.Warn("bad password")

	lines := decodeLines(t, &buf)
	assert.Len(t, lines, 1)
}

func TestSetThrottleDoesNotSuppressInfoOrDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, DebugLevel)
	log.SetThrottle(time.Hour)

	log.Info("login succeeded")
	log.Info("login succeeded")

	lines := decodeLines(t, &buf)
	assert.Len(t, lines, 2)
}

func TestSetThrottleZeroDisablesSuppression(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, DebugLevel)
	log.SetThrottle(time.Hour)
	log.SetThrottle(0)

	log.Warn("bad password")
	log.Warn("bad password")

	lines := decodeLines(t, &buf)
	assert.Len(t, lines, 2)
}

func TestGetLevelReflectsSetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, InfoLevel)

	assert.Equal(t, InfoLevel, log.GetLevel())

	log.SetLevel(ErrorLevel)
	assert.Equal(t, ErrorLevel, log.GetLevel())

	log.Warn("should be suppressed below ErrorLevel")
	assert.Empty(t, decodeLines(t, &buf))
}
