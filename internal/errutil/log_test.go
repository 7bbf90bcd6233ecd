package errutil_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/turn-engine/internal/errutil"
)

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("SESSION_NOT_FOUND").
		With("session_key", "abc").
		Errorf("no such session")

	errutil.LogError(logger, "load failed", err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "load failed", entry["msg"])
	assert.Equal(t, "SESSION_NOT_FOUND", entry["code"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogError(logger, "load failed", errors.New("plain"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry["error"], "plain")
	assert.NotContains(t, entry, "code")
}

func TestCode(t *testing.T) {
	assert.Equal(t, "", errutil.Code(errors.New("plain")))
	assert.Equal(t, "X", errutil.Code(oops.Code("X").Errorf("boom")))

	wrapped := oops.With("index", 2).Wrapf(oops.Code("INNER").Errorf("boom"), "outer")
	assert.Equal(t, "INNER", errutil.Code(wrapped))
}
