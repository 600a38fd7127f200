// Package metrics Prometheus 指标，注册在独立的 Registry 上
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "heston"

// 缓存结果标签
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	SimulationsTotal   *prometheus.CounterVec
	SimulationDuration prometheus.Histogram
	SimulatedPaths     prometheus.Counter
	ResourceEstimates  prometheus.Counter
	CacheRequests      *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration prometheus.Histogram
}

// New 创建并注册全部指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		SimulationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "Completed Monte Carlo simulations",
		}, []string{"option_type"}),
		SimulationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simulation_duration_seconds",
			Help:      "Wall time of one simulation",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		SimulatedPaths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulated_paths_total",
			Help:      "Monte Carlo paths simulated",
		}),
		ResourceEstimates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_estimates_total",
			Help:      "Quantum resource estimates computed",
		}),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Result cache lookups by outcome",
		}, []string{"result"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SimulationsTotal,
		m.SimulationDuration,
		m.SimulatedPaths,
		m.ResourceEstimates,
		m.CacheRequests,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Registry 底层 registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler /metrics 暴露端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSimulation 记录一次完成的模拟
func (m *Metrics) ObserveSimulation(optionType string, paths int, elapsed time.Duration) {
	m.SimulationsTotal.WithLabelValues(optionType).Inc()
	m.SimulationDuration.Observe(elapsed.Seconds())
	m.SimulatedPaths.Add(float64(paths))
}

// ObserveResourceEstimate 记录一次资源估算
func (m *Metrics) ObserveResourceEstimate() {
	m.ResourceEstimates.Inc()
}

// ObserveCache 记录一次缓存查询，result 取 CacheHit / CacheMiss / CacheError
func (m *Metrics) ObserveCache(result string) {
	m.CacheRequests.WithLabelValues(result).Inc()
}

// ObserveHTTP 记录一次 HTTP 请求
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.Observe(elapsed.Seconds())
}
