package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.TurnFinished("committed")
	m.TurnFinished("committed")
	m.TurnFinished("fallback")
	m.AttemptRetried("MALFORMED_MODEL_OUTPUT")
	m.EffectApplied("hp_delta")
	m.EffectRejected("UNKNOWN_ENTITY")
	m.EventEmitted("token")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.turns.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.turns.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("MALFORMED_MODEL_OUTPUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.effects.WithLabelValues("hp_delta")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("UNKNOWN_ENTITY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("token")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.NarratorStreamed(1500 * time.Millisecond)
	m.TurnFinished("committed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `turn_engine_turns_total{outcome="committed"} 1`), body)
	assert.Contains(t, body, "turn_engine_narrator_stream_seconds_count 1")
	assert.Contains(t, body, "go_goroutines")
}
