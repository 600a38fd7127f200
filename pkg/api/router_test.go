package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"

	"hestonq.com/pkg/metrics"
	"hestonq.com/pkg/pricing"
	"hestonq.com/pkg/quantum"
	"hestonq.com/pkg/risk"
	"hestonq.com/pkg/risk/heston"
	"hestonq.com/pkg/risk/options"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func smallParams() risk.ModelParameters {
	p := risk.DefaultParameters()
	p.NumPaths = 1000
	p.TimeSteps = 10
	return p
}

func newTestRouter(t *testing.T, svcOpts ...pricing.Option) (*gin.Engine, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	svcOpts = append(svcOpts, pricing.WithSimulatorOptions(heston.WithWorkers(2)))
	r := NewRouter(pricing.NewService(svcOpts...), Config{
		RequestTimeout: 10 * time.Second,
		Observer:       m,
		MetricsHandler: m.Handler(),
	})
	return r, m
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		raw, err := sonnet.Marshal(body)
		require.NoError(t, err)
		buf.Write(raw)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, sonnet.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// =============================================================================
// /simulate
// =============================================================================

func TestSimulate_OK(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/simulate?seed=7", smallParams())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	report := decode[pricing.SimulationReport](t, w)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, uint64(7), report.Seed)
	assert.Len(t, report.FinalPrices, 1000)
	assert.Len(t, report.Paths, 50*11)
	assert.Greater(t, report.Price, 0.0)
	assert.Greater(t, report.BlackScholesPrice, 0.0)

	// 同一种子结果可复现
	again := decode[pricing.SimulationReport](t, do(t, r, http.MethodPost, "/simulate?seed=7", smallParams()))
	assert.Equal(t, report.Price, again.Price)
	assert.NotEqual(t, report.RunID, again.RunID)
}

func TestSimulate_Summary(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/simulate?seed=1&summary=true", smallParams())
	require.Equal(t, http.StatusOK, w.Code)

	report := decode[pricing.SimulationReport](t, w)
	assert.Empty(t, report.Paths)
	assert.Empty(t, report.FinalPrices)
	assert.Greater(t, report.Price, 0.0)
}

func TestSimulate_KeepsCallerRequestID(t *testing.T) {
	r, _ := newTestRouter(t)

	raw, err := sonnet.Marshal(smallParams())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/simulate?summary=true", bytes.NewReader(raw))
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestSimulate_Errors(t *testing.T) {
	r, _ := newTestRouter(t, pricing.WithLimits(pricing.Limits{MaxPaths: 5000}))

	bad := smallParams()
	bad.Rho = -1.5
	w := do(t, r, http.MethodPost, "/simulate", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "rho", body["field"])

	w = do(t, r, http.MethodPost, "/simulate?seed=-1", smallParams())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "seed", decode[map[string]string](t, w)["field"])

	big := smallParams()
	big.NumPaths = 10000
	w = do(t, r, http.MethodPost, "/simulate", big)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/simulate", bytes.NewBufferString(`{"S0":`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulate_Timeout(t *testing.T) {
	svc := pricing.NewService(pricing.WithSimulatorOptions(heston.WithBlockSize(1), heston.WithWorkers(1)))
	r := NewRouter(svc, Config{RequestTimeout: time.Nanosecond})

	p := smallParams()
	p.NumPaths = 500000
	w := do(t, r, http.MethodPost, "/simulate", p)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

// =============================================================================
// 其它路由
// =============================================================================

func TestQuantumMetrics(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/quantum-metrics", smallParams())
	require.Equal(t, http.StatusOK, w.Code)

	est := decode[quantum.ResourceEstimate](t, w)
	assert.Equal(t, int64(25), est.GroverIterations)
	assert.Equal(t, 40.0, est.TheoreticalSpeedup)
	assert.Equal(t, int64(10)*4980, est.OracleDepth)
}

func TestGreeksAndTermStructure(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/greeks", smallParams())
	require.Equal(t, http.StatusOK, w.Code)
	greeks := decode[options.SensitivityBundle](t, w)
	assert.InDelta(t, 0.6368, greeks.Delta, 1e-4)

	w = do(t, r, http.MethodPost, "/greeks-term-structure", smallParams())
	require.Equal(t, http.StatusOK, w.Code)
	points := decode[[]options.TermPoint](t, w)
	require.Len(t, points, 21)
	assert.Equal(t, 0.01, points[0].Time)
	assert.Equal(t, 1.0, points[20].Time)

	bad := smallParams()
	bad.T = 0
	w = do(t, r, http.MethodPost, "/greeks-term-structure", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])

	w = do(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `heston_http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodOptions, "/simulate", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	r, _ := newTestRouter(t)
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := do(t, r, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", decode[map[string]string](t, w)["error"])
}
