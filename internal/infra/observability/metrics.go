package observability

import (
	"time"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the POS backend.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	ordersTotal     *prometheus.CounterVec
	fallbacksTotal  prometheus.Counter
	suggesterTokens prometheus.Counter
	requestsTotal   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pos_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		ordersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_orders_total",
				Help: "Total orders created, by payment method.",
			},
			[]string{"payment_method"},
		),
		fallbacksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pos_recommendation_fallback_total",
				Help: "Recommendations served by the statistical fallback.",
			},
		),
		suggesterTokens: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pos_suggester_tokens_total",
				Help: "Total tokens consumed by the generative suggester.",
			},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrOrder increments the orders counter for a payment method.
func (m *Metrics) IncrOrder(paymentMethod string) {
	m.ordersTotal.WithLabelValues(paymentMethod).Inc()
}

// IncrFallback increments the recommendation fallback counter.
func (m *Metrics) IncrFallback() {
	m.fallbacksTotal.Inc()
}

// RecordSuggesterTokens records token usage reported by the suggester.
func (m *Metrics) RecordSuggesterTokens(tokens int) {
	m.suggesterTokens.Add(float64(tokens))
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// GetEngineSnapshot returns a snapshot of recommendation-engine metrics
// suitable for the GET /api/analytics/engine endpoint.
func (m *Metrics) GetEngineSnapshot() *domain.EngineMetrics {
	// Prometheus counters expose cumulative values.
	totalRequests := getCounterValue(m.requestsTotal, "success") +
		getCounterValue(m.requestsTotal, "error")
	errorCount := getCounterValue(m.requestsTotal, "error")
	cacheHits := getCounterValue(m.cacheHits, "catalog")
	cacheMisses := getCounterValue(m.cacheMisses, "catalog")
	fallbacks := readCounter(m.fallbacksTotal)
	tokens := readCounter(m.suggesterTokens)

	errorRate := float64(0)
	fallbackRate := float64(0)
	cacheHitRate := float64(0)

	if totalRequests > 0 {
		errorRate = errorCount / totalRequests
		fallbackRate = fallbacks / totalRequests
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.EngineMetrics{
		TotalRequests:   int64(totalRequests),
		ErrorRate:       errorRate,
		CacheHitRate:    cacheHitRate,
		FallbackRate:    fallbackRate,
		SuggesterTokens: tokens,
		Period:          "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	metric, ok := counter.(prometheus.Metric)
	if !ok {
		return 0
	}
	m := &dto.Metric{}
	if err := metric.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// readCounter extracts the current value of a plain counter.
func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
