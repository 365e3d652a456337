package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/ynab-portal/internal/domain"
	"github.com/shaiso/ynab-portal/internal/repo"
	"github.com/shaiso/ynab-portal/internal/telemetry"
)

// ScheduleStore — хранилище расписаний.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.SyncSchedule, error)
	ListMissingNextDue(ctx context.Context) ([]domain.SyncSchedule, error)
	Update(ctx context.Context, s *domain.SyncSchedule) error
}

// RunStore — хранилище sync runs.
type RunStore interface {
	Create(ctx context.Context, run *domain.SyncRun) error
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.SyncRun, error)
}

// Publisher публикует созданные runs для воркеров.
type Publisher interface {
	PublishSyncRequested(ctx context.Context, run *domain.SyncRun) error
}

// Scheduler — планировщик, создающий sync runs по расписаниям.
type Scheduler struct {
	schedules ScheduleStore
	runs      RunStore
	publisher Publisher
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	batchSize int
	now       func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules ScheduleStore
	Runs      RunStore
	Publisher Publisher // опционально, без него воркер забирает runs polling'ом
	Metrics   *telemetry.Metrics
	Logger    *slog.Logger
	BatchSize int // расписаний за один тик (default: 100)
	Now       func() time.Time
}

// New создаёт Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Named("scheduler")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		schedules: cfg.Schedules,
		runs:      cfg.Runs,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    logger,
		batchSize: batchSize,
		now:       now,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Заполняет next_due_at у включённых расписаний без него
// 2. Находит due расписания (enabled=true, next_due_at <= now)
// 3. Для каждого создаёт PENDING run и сдвигает next_due_at
// 4. Публикует sync.requested
//
// Ошибка одного расписания не блокирует остальные.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.metrics.IncSchedulerTick()
	now := s.now()

	if err := s.SeedNextDue(ctx, now); err != nil {
		return err
	}

	schedules, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}
	if len(schedules) == 0 {
		return nil
	}

	s.logger.DebugContext(ctx, "found due schedules", "count", len(schedules))

	var processed, created int
	for i := range schedules {
		sched := &schedules[i]

		runCreated, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			continue
		}

		processed++
		if runCreated {
			created++
		}
	}

	s.logger.InfoContext(ctx, "scheduler tick completed",
		"due", len(schedules),
		"processed", processed,
		"runs_created", created,
	)
	return nil
}

// SeedNextDue вычисляет next_due_at для включённых расписаний, у которых его нет:
// новых, засеянных миграцией и повторно включённых.
func (s *Scheduler) SeedNextDue(ctx context.Context, now time.Time) error {
	missing, err := s.schedules.ListMissingNextDue(ctx)
	if err != nil {
		return fmt.Errorf("list schedules without next due: %w", err)
	}

	for i := range missing {
		sched := &missing[i]
		next, err := CalculateNextDue(sched, now)
		if err != nil {
			s.logger.ErrorContext(ctx, "invalid schedule, leaving unseeded",
				"schedule_id", sched.ID,
				"cron_expr", sched.CronExpr,
				"error", err,
			)
			continue
		}
		sched.NextDueAt = &next
		sched.UpdatedAt = now
		if err := s.schedules.Update(ctx, sched); err != nil {
			return fmt.Errorf("seed schedule %s: %w", sched.Name, err)
		}
		s.logger.InfoContext(ctx, "schedule seeded", "schedule_name", sched.Name, "next_due_at", next)
	}
	return nil
}

// processSchedule обрабатывает одно расписание.
// Возвращает true, если run создан (не дубликат).
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.SyncSchedule, now time.Time) (bool, error) {
	// "{schedule_id}_{next_due_at_unix}": один run на расписание и момент времени
	idempKey := fmt.Sprintf("%s_%d", sched.ID, sched.NextDueAt.Unix())

	existing, err := s.runs.GetByIdempotencyKey(ctx, idempKey)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return false, fmt.Errorf("check idempotency: %w", err)
	}

	run := existing
	runCreated := false
	if existing != nil {
		s.logger.DebugContext(ctx, "run already exists",
			"schedule_id", sched.ID,
			"run_id", existing.ID,
			"idempotency_key", idempKey,
		)
	} else {
		run = domain.NewSyncRun(sched.Job, domain.TriggerScheduler)
		run.IdempotencyKey = idempKey
		run.CreatedAt = now

		if err := s.runs.Create(ctx, run); err != nil {
			return false, fmt.Errorf("create run: %w", err)
		}
		runCreated = true

		s.logger.InfoContext(ctx, "created run from schedule",
			"run_id", run.ID,
			"schedule_name", sched.Name,
			"job", sched.Job,
		)
	}

	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to calculate next due",
			"schedule_id", sched.ID,
			"error", err,
		)
		return runCreated, nil
	}

	sched.RecordRun(run.ID, nextDue)
	if err := s.schedules.Update(ctx, sched); err != nil {
		return runCreated, fmt.Errorf("update schedule: %w", err)
	}

	if s.publisher != nil && runCreated {
		if err := s.publisher.PublishSyncRequested(ctx, run); err != nil {
			// run уже в БД, воркер заберёт его polling'ом
			s.logger.WarnContext(ctx, "failed to publish sync.requested",
				"run_id", run.ID,
				"error", err,
			)
		}
	}
	return runCreated, nil
}
