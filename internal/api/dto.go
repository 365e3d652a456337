package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
)

// Run DTOs

// CreateRunRequest — запрос на постановку sync run в очередь.
type CreateRunRequest struct {
	Job     string `json:"job"`
	Force   bool   `json:"force"`
	Trigger string `json:"trigger,omitempty"`
}

// RunResponse — ответ с sync run.
type RunResponse struct {
	ID             uuid.UUID       `json:"id"`
	Job            domain.Job      `json:"job"`
	Status         string          `json:"status"`
	Trigger        string          `json:"trigger"`
	Force          bool            `json:"force"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	DurationMs     int64           `json:"duration_ms,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// RunFromDomain конвертирует domain.SyncRun в RunResponse.
func RunFromDomain(r *domain.SyncRun) RunResponse {
	return RunResponse{
		ID:             r.ID,
		Job:            r.Job,
		Status:         string(r.Status),
		Trigger:        string(r.Trigger),
		Force:          r.Force,
		IdempotencyKey: r.IdempotencyKey,
		Result:         r.Result,
		Error:          r.Error,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		DurationMs:     r.Duration().Milliseconds(),
		CreatedAt:      r.CreatedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание расписания.
type CreateScheduleRequest struct {
	Name     string `json:"name"`
	Job      string `json:"job"`
	CronExpr string `json:"cron_expr"`
	Timezone string `json:"timezone,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление расписания.
type UpdateScheduleRequest struct {
	Name     *string `json:"name,omitempty"`
	Job      *string `json:"job,omitempty"`
	CronExpr *string `json:"cron_expr,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение расписания.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с расписанием.
type ScheduleResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Job       domain.Job `json:"job"`
	CronExpr  string     `json:"cron_expr"`
	Timezone  string     `json:"timezone"`
	Enabled   bool       `json:"enabled"`
	NextDueAt *time.Time `json:"next_due_at,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastRunID *uuid.UUID `json:"last_run_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.SyncSchedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.SyncSchedule) ScheduleResponse {
	return ScheduleResponse{
		ID:        s.ID,
		Name:      s.Name,
		Job:       s.Job,
		CronExpr:  s.CronExpr,
		Timezone:  s.Timezone,
		Enabled:   s.Enabled,
		NextDueAt: s.NextDueAt,
		LastRunAt: s.LastRunAt,
		LastRunID: s.LastRunID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// HealthResponse — ответ /health.
type HealthResponse struct {
	Status string `json:"status"`
}
