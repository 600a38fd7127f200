package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := New()

	m.ObserveSimulation("Call", 1000, 20*time.Millisecond)
	m.ObserveSimulation("Call", 500, 10*time.Millisecond)
	m.ObserveSimulation("Put", 10, time.Millisecond)
	m.ObserveResourceEstimate()
	m.ObserveCache(CacheHit)
	m.ObserveCache(CacheMiss)
	m.ObserveCache(CacheMiss)
	m.ObserveHTTP("POST", "/simulate", 200, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SimulationsTotal.WithLabelValues("Call")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SimulationsTotal.WithLabelValues("Put")))
	assert.Equal(t, 1510.0, testutil.ToFloat64(m.SimulatedPaths))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResourceEstimates))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues(CacheMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/simulate", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SimulationDuration, "heston_simulation_duration_seconds"))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveResourceEstimate()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "heston_resource_estimates_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
