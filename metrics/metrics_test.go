package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/saucer/core"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg, "")
	observe := c.Observer()

	observe(core.Observation{Seq: 1, Kind: core.Effect, Plugin: "timer"})
	observe(core.Observation{Seq: 2, Kind: core.Effect, Plugin: "timer"})
	observe(core.Observation{Seq: 3, Kind: core.Effect, Plugin: "http"})
	observe(core.Observation{Seq: 4, Kind: core.Message})
	observe(core.Observation{Seq: 5, Kind: core.SelfMessage, Plugin: "timer"})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.effects.WithLabelValues("timer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.effects.WithLabelValues("http")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messages))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.selfMessages.WithLabelValues("timer")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.sequence))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg, "app")
	c.Observe(core.Observation{Kind: core.Message})

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "app_messages_total 1")
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg, "")
	assert.Panics(t, func() { NewCollector(reg, "") })
}
