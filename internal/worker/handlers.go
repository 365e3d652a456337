package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
	"github.com/shaiso/ynab-portal/internal/mq"
	"github.com/shaiso/ynab-portal/internal/repo"
	ynabsync "github.com/shaiso/ynab-portal/internal/sync"
	"github.com/shaiso/ynab-portal/internal/telemetry"
	"github.com/shaiso/ynab-portal/internal/ynab"
)

// handleSyncRequested обрабатывает сообщение из очереди sync.requested.
func (w *Worker) handleSyncRequested(ctx context.Context, msg *mq.Message) error {
	payload, err := mq.ParsePayload[mq.SyncRequestedPayload](msg)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to parse sync.requested payload", "error", err)
		return err
	}

	w.logger.DebugContext(ctx, "received sync.requested", "run_id", payload.RunID, "job", payload.Job)

	if err := w.ProcessRun(ctx, payload.RunID); err != nil {
		// run уже обработан другим воркером или удалён
		if errors.Is(err, ErrRunNotFound) || errors.Is(err, ErrRunNotPending) {
			w.logger.DebugContext(ctx, "run not processed", "run_id", payload.RunID, "reason", err)
			return nil
		}
		return err
	}
	return nil
}

// ProcessRun забирает PENDING run, выполняет задачу и сохраняет результат.
//
// Ошибка синхронизации не возвращается: run переходит в FAILED.
// Возвращаются только ошибки хранилища и ErrRunNotFound/ErrRunNotPending.
func (w *Worker) ProcessRun(ctx context.Context, runID uuid.UUID) error {
	run, err := w.runs.Claim(ctx, runID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	case errors.Is(err, repo.ErrInvalidState):
		return fmt.Errorf("%w: %s", ErrRunNotPending, runID)
	case err != nil:
		return fmt.Errorf("claim run: %w", err)
	}

	logger := telemetry.WithJob(telemetry.WithRunID(w.logger, run.ID.String()), run.Job.String())
	ctx = telemetry.WithLogger(ctx, logger)
	logger.InfoContext(ctx, "run started", "trigger", run.Trigger, "force", run.Force)

	result, syncErr := w.runWithRetry(ctx, run)
	if syncErr != nil {
		run.MarkFailed(syncErr.Error())
		logger.WarnContext(ctx, "run failed", "error", syncErr)
	} else {
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		run.MarkSucceeded(raw)
		logger.InfoContext(ctx, "run succeeded",
			"skipped", result.Skipped,
			"message", result.Message,
			"duration", run.Duration(),
		)
	}

	// контекст воркера может быть отменён, итог run сохраняется всё равно
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := w.runs.Update(saveCtx, run); err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	w.metrics.IncSyncRun(run.Job.String(), string(run.Status))

	w.publishCompletion(saveCtx, run)
	return nil
}

// runWithRetry повторяет временные ошибки YNAB согласно RetryPolicy.
func (w *Worker) runWithRetry(ctx context.Context, run *domain.SyncRun) (*ynabsync.Result, error) {
	opts := ynabsync.Options{Force: run.Force}

	for attempt := 1; ; attempt++ {
		result, err := w.syncer.Run(ctx, run.Job, opts)
		if err == nil {
			return result, nil
		}
		if attempt >= w.retry.MaxAttempts || !retryable(err) {
			return nil, err
		}

		delay := w.retry.backoff(attempt)
		telemetry.FromContext(ctx).DebugContext(ctx, "retrying run",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// retryable — ошибка временная: rate limit или 5xx YNAB.
func retryable(err error) bool {
	if errors.Is(err, ynab.ErrRateLimited) {
		return true
	}
	var apiErr *ynab.APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 500
}

func (w *Worker) publishCompletion(ctx context.Context, run *domain.SyncRun) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.PublishSyncCompleted(ctx, run); err != nil {
		// итог уже в БД
		w.logger.WarnContext(ctx, "failed to publish sync.completed", "run_id", run.ID, "error", err)
	}
}
