package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/ynab-portal/internal/domain"
)

// ScheduleRepo — репозиторий для работы с sync_schedules.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

const scheduleColumns = `id, name, job, cron_expr, timezone, enabled,
	next_due_at, last_run_at, last_run_id, created_at, updated_at`

// Create создаёт новое расписание.
func (r *ScheduleRepo) Create(ctx context.Context, s *domain.SyncSchedule) error {
	query := `
		INSERT INTO sync_schedules (id, name, job, cron_expr, timezone, enabled,
		                            next_due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Name,
		s.Job,
		s.CronExpr,
		s.Timezone,
		s.Enabled,
		s.NextDueAt,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", classify(err))
	}
	return nil
}

// GetByID возвращает расписание по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SyncSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM sync_schedules WHERE id = $1`
	return scanSchedule(r.pool.QueryRow(ctx, query, id))
}

// GetByName возвращает расписание по имени.
func (r *ScheduleRepo) GetByName(ctx context.Context, name string) (*domain.SyncSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM sync_schedules WHERE name = $1`
	return scanSchedule(r.pool.QueryRow(ctx, query, name))
}

// List возвращает расписания с фильтрацией.
func (r *ScheduleRepo) List(ctx context.Context, filter ScheduleFilter) ([]domain.SyncSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM sync_schedules
		WHERE ($1::text IS NULL OR job = $1)
		  AND ($2::boolean IS NULL OR enabled = $2)
		ORDER BY name ASC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Job)),
		filter.Enabled,
		filter.limit(),
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return collectSchedules(rows)
}

// ListDue возвращает расписания, готовые к выполнению.
func (r *ScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.SyncSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM sync_schedules
		WHERE enabled = true
		  AND next_due_at IS NOT NULL
		  AND next_due_at <= $1
		ORDER BY next_due_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	return collectSchedules(rows)
}

// ListMissingNextDue возвращает включённые расписания без next_due_at.
func (r *ScheduleRepo) ListMissingNextDue(ctx context.Context) ([]domain.SyncSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM sync_schedules
		WHERE enabled = true AND next_due_at IS NULL
		ORDER BY name ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list schedules without next due: %w", err)
	}
	return collectSchedules(rows)
}

// Update обновляет расписание.
func (r *ScheduleRepo) Update(ctx context.Context, s *domain.SyncSchedule) error {
	query := `
		UPDATE sync_schedules
		SET name = $2, job = $3, cron_expr = $4, timezone = $5, enabled = $6,
		    next_due_at = $7, last_run_at = $8, last_run_id = $9, updated_at = $10
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Name,
		s.Job,
		s.CronExpr,
		s.Timezone,
		s.Enabled,
		s.NextDueAt,
		s.LastRunAt,
		s.LastRunID,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", classify(err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled включает/выключает расписание.
// Выключенное расписание теряет next_due_at, scheduler пересчитает его при включении.
func (r *ScheduleRepo) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE sync_schedules
		SET enabled = $2,
		    next_due_at = CASE WHEN $2 THEN next_due_at ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1
	`, id, enabled)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет расписание. Созданные им runs остаются.
func (r *ScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM sync_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", classify(err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// ScheduleFilter — параметры фильтрации расписаний.
type ScheduleFilter struct {
	Job     domain.Job
	Enabled *bool
	Limit   int
	Offset  int
}

func (f ScheduleFilter) limit() int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}

func scanSchedule(row pgx.Row) (*domain.SyncSchedule, error) {
	var s domain.SyncSchedule
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Job,
		&s.CronExpr,
		&s.Timezone,
		&s.Enabled,
		&s.NextDueAt,
		&s.LastRunAt,
		&s.LastRunID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	return &s, nil
}

func collectSchedules(rows pgx.Rows) ([]domain.SyncSchedule, error) {
	defer rows.Close()

	var schedules []domain.SyncSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}
