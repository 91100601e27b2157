package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWithWriter_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")

	l.Info("dropped")
	l.Warn("kept", "user_id", 7)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.EqualValues(t, 7, rec["user_id"])
}

func TestContextRoundTrip(t *testing.T) {
	l := NewWithWriter(&bytes.Buffer{}, "info")
	ctx := IntoContext(context.Background(), l)

	assert.Same(t, l, FromContext(ctx))
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
