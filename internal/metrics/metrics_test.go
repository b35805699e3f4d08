package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAccumulate(t *testing.T) {
	m := New()
	m.EntitiesGenerated.Inc()
	m.EntitiesGenerated.Inc()
	m.StateActivations.WithLabelValues("examplitis").Add(5)
	m.ModuleCompletions.WithLabelValues("examplitis").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntitiesGenerated))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.StateActivations.WithLabelValues("examplitis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModuleCompletions.WithLabelValues("examplitis")))
}

func TestIndependentRegistries(t *testing.T) {
	// Two Metrics never share collectors; New must not panic on duplicate
	// registration the way the default registry would.
	a := New()
	b := New()
	a.EntitiesGenerated.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.EntitiesGenerated))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.EntitiesGenerated.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lifegraph_entities_generated_total")
}
