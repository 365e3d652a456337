package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
	"github.com/shaiso/ynab-portal/internal/repo"
	"github.com/shaiso/ynab-portal/internal/scheduler"
)

// ListSchedules возвращает список расписаний с фильтрацией.
// GET /portal/sync/schedules?job=...&enabled=...&limit=...&offset=...
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.ScheduleFilter{
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

	if enabledStr := q.Get("enabled"); enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			BadRequest(w, "invalid enabled")
			return
		}
		filter.Enabled = &enabled
	}

	schedules, err := h.schedules.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ScheduleResponse, len(schedules))
	for i := range schedules {
		result[i] = ScheduleFromDomain(&schedules[i])
	}
	List(w, result, len(result))
}

// CreateSchedule создаёт расписание. next_due_at вычисляет scheduler.
// POST /portal/sync/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	job, err := domain.ParseJob(req.Job)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	if !validateTiming(w, req.CronExpr, timezone) {
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	now := time.Now().UTC()
	sched := &domain.SyncSchedule{
		ID:        uuid.New(),
		Name:      req.Name,
		Job:       job,
		CronExpr:  req.CronExpr,
		Timezone:  timezone,
		Enabled:   enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if enabled {
		next, err := scheduler.CalculateNextDue(sched, now)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		sched.NextDueAt = &next
	}

	if err := h.schedules.Create(r.Context(), sched); HandleRepoError(w, h.logger, err, "") {
		return
	}
	Created(w, ScheduleFromDomain(sched))
}

// GetSchedule возвращает расписание по ID.
// GET /portal/sync/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	sched, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}
	Success(w, ScheduleFromDomain(sched))
}

// UpdateSchedule обновляет расписание. При смене cron или timezone
// next_due_at пересчитывается.
// PUT /portal/sync/schedules/{id}
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	sched, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	timingChanged := false
	if req.Name != nil {
		sched.Name = *req.Name
	}
	if req.Job != nil {
		job, err := domain.ParseJob(*req.Job)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		sched.Job = job
	}
	if req.CronExpr != nil && *req.CronExpr != sched.CronExpr {
		sched.CronExpr = *req.CronExpr
		timingChanged = true
	}
	if req.Timezone != nil && *req.Timezone != sched.Timezone {
		sched.Timezone = *req.Timezone
		timingChanged = true
	}
	if !validateTiming(w, sched.CronExpr, sched.Timezone) {
		return
	}

	now := time.Now().UTC()
	if timingChanged && sched.Enabled {
		next, err := scheduler.CalculateNextDue(sched, now)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		sched.NextDueAt = &next
	}
	sched.UpdatedAt = now

	if err := h.schedules.Update(r.Context(), sched); HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}
	Success(w, ScheduleFromDomain(sched))
}

// DeleteSchedule удаляет расписание.
// DELETE /portal/sync/schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	if err := h.schedules.Delete(r.Context(), id); HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}
	NoContent(w)
}

// SetScheduleEnabled включает или выключает расписание.
// PUT /portal/sync/schedules/{id}/enabled
func (h *Handler) SetScheduleEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := h.schedules.SetEnabled(r.Context(), id, req.Enabled); HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	sched, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}
	Success(w, ScheduleFromDomain(sched))
}

func scheduleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return uuid.Nil, false
	}
	return id, true
}

func validateTiming(w http.ResponseWriter, cronExpr, timezone string) bool {
	if err := scheduler.ValidateCronExpr(cronExpr); err != nil {
		BadRequest(w, err.Error())
		return false
	}
	if err := scheduler.ValidateTimezone(timezone); err != nil {
		BadRequest(w, err.Error())
		return false
	}
	return true
}
