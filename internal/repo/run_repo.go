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

// RunRepo — репозиторий для работы с sync_runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

const runColumns = `id, job, status, trigger, force, idempotency_key, result, error,
	started_at, finished_at, created_at`

// Create создаёт новый run.
func (r *RunRepo) Create(ctx context.Context, run *domain.SyncRun) error {
	query := `
		INSERT INTO sync_runs (id, job, status, trigger, force, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Job,
		run.Status,
		run.Trigger,
		run.Force,
		nullString(run.IdempotencyKey),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", classify(err))
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE id = $1`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey возвращает run по ключу идемпотентности.
func (r *RunRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE idempotency_key = $1`
	return scanRun(r.pool.QueryRow(ctx, query, key))
}

// List возвращает список runs с фильтрацией.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.SyncRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM sync_runs
		WHERE ($1::text IS NULL OR job = $1)
		  AND ($2::text IS NULL OR status = $2::run_status)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Job)),
		nullString(string(filter.Status)),
		filter.limit(),
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return collectRuns(rows)
}

// ListPending возвращает runs в статусе PENDING, старые первыми.
func (r *RunRepo) ListPending(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM sync_runs
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending runs: %w", err)
	}
	return collectRuns(rows)
}

// Claim атомарно переводит run из PENDING в RUNNING.
// Возвращает ErrInvalidState, если run уже взят другим воркером.
func (r *RunRepo) Claim(ctx context.Context, id uuid.UUID) (*domain.SyncRun, error) {
	query := `
		UPDATE sync_runs
		SET status = 'RUNNING', started_at = $2
		WHERE id = $1 AND status = 'PENDING'
		RETURNING ` + runColumns
	run, err := scanRun(r.pool.QueryRow(ctx, query, id, time.Now()))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidState
	}
	return run, err
}

// Update сохраняет статус, результат и время выполнения run.
func (r *RunRepo) Update(ctx context.Context, run *domain.SyncRun) error {
	query := `
		UPDATE sync_runs
		SET status = $2, started_at = $3, finished_at = $4, error = $5, result = $6
		WHERE id = $1
	`
	var result []byte
	if len(run.Result) > 0 {
		result = run.Result
	}
	res, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		run.StartedAt,
		run.FinishedAt,
		nullString(run.Error),
		result,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	Job    domain.Job
	Status domain.RunStatus
	Limit  int
	Offset int
}

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return 50
	}
	return f.Limit
}

func scanRun(row pgx.Row) (*domain.SyncRun, error) {
	var run domain.SyncRun
	var idempotencyKey, runError *string
	var result []byte

	err := row.Scan(
		&run.ID,
		&run.Job,
		&run.Status,
		&run.Trigger,
		&run.Force,
		&idempotencyKey,
		&result,
		&runError,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if idempotencyKey != nil {
		run.IdempotencyKey = *idempotencyKey
	}
	if runError != nil {
		run.Error = *runError
	}
	if len(result) > 0 {
		run.Result = result
	}
	return &run, nil
}

func collectRuns(rows pgx.Rows) ([]domain.SyncRun, error) {
	defer rows.Close()

	var runs []domain.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
