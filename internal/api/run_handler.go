package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
	"github.com/shaiso/ynab-portal/internal/repo"
)

// ListRuns возвращает список sync runs с фильтрацией.
// GET /portal/sync/runs?job=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.RunFilter{
		Status: domain.RunStatus(q.Get("status")),
		Limit:  mustParseInt(q.Get("limit"), 50),
		Offset: mustParseInt(q.Get("offset"), 0),
	}

	if job := q.Get("job"); job != "" {
		parsed, err := domain.ParseJob(job)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		filter.Job = parsed
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i := range runs {
		result[i] = RunFromDomain(&runs[i])
	}
	List(w, result, len(result))
}

// GetRun возвращает sync run по ID.
// GET /portal/sync/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}
	Success(w, RunFromDomain(run))
}

// CreateRun ставит sync run в очередь воркеров.
// POST /portal/sync/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	job, err := domain.ParseJob(req.Job)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	run := domain.NewSyncRun(job, domain.ParseRunTrigger(req.Trigger))
	run.Force = req.Force
	if err := h.runs.Create(r.Context(), run); HandleRepoError(w, h.logger, err, "") {
		return
	}

	h.logger.Info("run queued", "run_id", run.ID, "job", job, "trigger", run.Trigger)

	if h.publisher != nil {
		if err := h.publisher.PublishSyncRequested(r.Context(), run); err != nil {
			// run уже в БД, воркер заберёт его polling'ом
			h.logger.Warn("failed to publish sync.requested", "run_id", run.ID, "error", err)
		}
	}

	Accepted(w, RunFromDomain(run))
}

// mustParseInt парсит строку в int или возвращает default.
func mustParseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
