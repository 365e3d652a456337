package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus метрики сервисов.
//
// Все метрики несут константную метку env (APP_ENV).
// Методы безопасно вызывать на nil.
type Metrics struct {
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	ynabRequests   *prometheus.CounterVec
	syncRuns       *prometheus.CounterVec
	schedulerTicks prometheus.Counter
}

// NewMetrics регистрирует метрики в reg.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewMetrics(env string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"env": env}, reg))

	return &Metrics{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ynab_portal_http_requests_total",
			Help: "Total HTTP requests handled by ynab-api",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ynab_portal_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ynabRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ynab_portal_ynab_requests_total",
			Help: "Requests made to the YNAB API",
		}, []string{"route", "status"}),
		syncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ynab_portal_sync_runs_total",
			Help: "Finished sync runs by job and status",
		}, []string{"job", "status"}),
		schedulerTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "ynab_portal_scheduler_ticks_total",
			Help: "Scheduler ticks executed by the leader",
		}),
	}
}

// ObserveHTTP учитывает HTTP-запрос.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncYNABRequest учитывает запрос к YNAB API.
func (m *Metrics) IncYNABRequest(route string, status int) {
	if m == nil {
		return
	}
	m.ynabRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// IncSyncRun учитывает завершённый sync run.
func (m *Metrics) IncSyncRun(job, status string) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(job, status).Inc()
}

// IncSchedulerTick учитывает тик планировщика.
func (m *Metrics) IncSchedulerTick() {
	if m == nil {
		return
	}
	m.schedulerTicks.Inc()
}
