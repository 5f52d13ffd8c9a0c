package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	l := Discard()
	assert.Same(t, l, FromContext(WithLogger(context.Background(), l)))
}

func TestRedacted(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, slog.LevelInfo).Info("share computed", Redacted("share"))
	assert.Contains(t, buf.String(), "share="+RedactedValue)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))

	var buf bytes.Buffer
	New(&buf, ParseLevel("info")).Debug("hidden")
	assert.Empty(t, buf.String())
}
