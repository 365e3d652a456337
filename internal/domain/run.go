package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SyncRun — один запуск задачи синхронизации.
//
// Run создаётся когда:
// - Scheduler создаёт run по расписанию
// - Пользователь запускает синхронизацию через API или CLI
type SyncRun struct {
	ID uuid.UUID `json:"id"`

	// Job — выполняемая задача.
	Job Job `json:"job"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Trigger — кто запустил run.
	Trigger RunTrigger `json:"trigger"`

	// Force — игнорировать проверку "уже синхронизировано сегодня".
	Force bool `json:"force"`

	// IdempotencyKey — ключ идемпотентности для scheduled runs:
	// "{schedule_id}_{next_due_unix}".
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// Result — итог синхронизации (sync.Result в JSON).
	Result json.RawMessage `json:"result,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewSyncRun создаёт run в статусе PENDING.
func NewSyncRun(job Job, trigger RunTrigger) *SyncRun {
	return &SyncRun{
		ID:        uuid.New(),
		Job:       job,
		Status:    RunStatusPending,
		Trigger:   trigger,
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *SyncRun) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *SyncRun) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *SyncRun) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED с результатом.
func (r *SyncRun) MarkSucceeded(result json.RawMessage) {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
	r.Result = result
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *SyncRun) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}
