package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Трафик по шаблону маршрута, а не по сырому пути.
	HTTPRequests *prometheus.CounterVec

	HTTPDuration *prometheus.HistogramVec

	// Вычисления по оператору и результату (ok, invalid, storage_error).
	Calculations *prometheus.CounterVec

	// Отклоненные логины и токены по причине.
	AuthFailures *prometheus.CounterVec

	// Исходы кэша истории: hit, miss, error, stale.
	HistoryCache *prometheus.CounterVec

	// Breaker кэша истории: 0 closed, 1 half-open, 2 open.
	CacheBreakerState prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Без реестра метрики все равно считаются, просто никуда не отдаются.
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		HTTPRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "apicalc_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),

		HTTPDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "apicalc_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route"}),

		Calculations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "apicalc_calculations_total",
			Help: "Total number of evaluated equations.",
		}, []string{"operator", "outcome"}),

		AuthFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "apicalc_auth_failures_total",
			Help: "Total number of rejected credentials and tokens.",
		}, []string{"reason"}),

		HistoryCache: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "apicalc_history_cache_total",
			Help: "History cache lookups by result.",
		}, []string{"result"}),

		CacheBreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "apicalc_history_cache_breaker_state",
			Help: "State of the history cache circuit breaker (0 closed, 1 half-open, 2 open).",
		}),
	}
}
