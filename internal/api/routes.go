package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shaiso/ynab-portal/internal/domain"
)

// Routes возвращает корневой http.Handler API с CORS.
// gatherer отдаётся на /metrics, nil — без /metrics.
func (h *Handler) Routes(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	h.RegisterRoutes(mux)

	origins := h.auth.Origins
	if origins == "" {
		origins = "*"
	}
	return CORS(origins)(mux)
}

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	public := Chain(
		Recovery(h.logger),
		Metrics(h.metrics),
	)
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		Metrics(h.metrics),
		Auth(h.auth, h.logger),
	)
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, chain(fn))
	}

	// Health
	mux.Handle("GET /health", public(http.HandlerFunc(h.Health)))

	// Admin (react-admin)
	if h.admin != nil {
		handle("GET /portal/admin/{resource}", h.AdminList)
		handle("POST /portal/admin/{resource}", h.AdminCreate)
		handle("DELETE /portal/admin/{resource}", h.AdminDeleteMany)
		handle("GET /portal/admin/{resource}/{id}", h.AdminGet)
		handle("PUT /portal/admin/{resource}/{id}", h.AdminUpdate)
		handle("DELETE /portal/admin/{resource}/{id}", h.AdminDelete)
	}

	// Reports
	if h.reports != nil {
		h.registerReports(handle)
	}

	// Sync
	if h.syncer != nil {
		for _, job := range domain.AllJobs {
			handle("GET /ynab/update-"+job.String(), h.syncNow(job))
			handle("POST /ynab/update-"+job.String(), h.syncNow(job))
		}
	}

	// Runs
	if h.runs != nil {
		handle("GET /portal/sync/runs", h.ListRuns)
		handle("POST /portal/sync/runs", h.CreateRun)
		handle("GET /portal/sync/runs/{id}", h.GetRun)
	}

	// Schedules
	if h.schedules != nil {
		handle("GET /portal/sync/schedules", h.ListSchedules)
		handle("POST /portal/sync/schedules", h.CreateSchedule)
		handle("GET /portal/sync/schedules/{id}", h.GetSchedule)
		handle("PUT /portal/sync/schedules/{id}", h.UpdateSchedule)
		handle("DELETE /portal/sync/schedules/{id}", h.DeleteSchedule)
		handle("PUT /portal/sync/schedules/{id}/enabled", h.SetScheduleEnabled)
	}

	mux.Handle("/", public(http.HandlerFunc(h.NotFound)))
}

// Health — проверка живости.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	Raw(w, HealthResponse{Status: "OK"})
}

// NotFound отвечает 404 на неизвестные маршруты.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.logger.Warn("resource attempted",
		"method", r.Method,
		"path", r.URL.Path,
		"host", r.Host,
		"user_agent", r.UserAgent(),
	)
	NotFound(w, "Not Found")
}
