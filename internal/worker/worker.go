package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
	"github.com/shaiso/ynab-portal/internal/mq"
	ynabsync "github.com/shaiso/ynab-portal/internal/sync"
	"github.com/shaiso/ynab-portal/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 20
	defaultPrefetch     = 1
)

// RunStore — хранилище sync runs.
type RunStore interface {
	ListPending(ctx context.Context, limit int) ([]domain.SyncRun, error)
	Claim(ctx context.Context, id uuid.UUID) (*domain.SyncRun, error)
	Update(ctx context.Context, run *domain.SyncRun) error
}

// Syncer выполняет задачу синхронизации.
type Syncer interface {
	Run(ctx context.Context, job domain.Job, opts ynabsync.Options) (*ynabsync.Result, error)
}

// Publisher сообщает о завершении run.
type Publisher interface {
	PublishSyncCompleted(ctx context.Context, run *domain.SyncRun) error
}

// Worker выполняет sync runs.
//
// Worker:
//   - Получает runs из очереди sync.requested (event-driven)
//   - Периодически забирает PENDING runs из БД (polling fallback)
//   - Выполняет задачу через Syncer с retry для временных ошибок YNAB
//   - Публикует sync.completed
//
// Несколько воркеров могут работать параллельно: run забирается атомарно.
type Worker struct {
	runs      RunStore
	syncer    Syncer
	publisher Publisher
	conn      *mq.Connection
	metrics   *telemetry.Metrics
	retry     RetryPolicy

	consumer *mq.Consumer

	pollInterval time.Duration
	batchSize    int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Runs   RunStore
	Syncer Syncer

	// Publisher и Conn опциональны: без брокера воркер работает только через polling.
	Publisher Publisher
	Conn      *mq.Connection

	Metrics *telemetry.Metrics
	Retry   RetryPolicy

	PollInterval time.Duration // интервал polling (default: 30s)
	BatchSize    int           // runs за один poll (default: 20)

	Logger *slog.Logger
}

// New создаёт Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Named("worker")
	}

	return &Worker{
		runs:         cfg.Runs,
		syncer:       cfg.Syncer,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		metrics:      cfg.Metrics,
		retry:        cfg.Retry.withDefaults(),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает consumer (если есть соединение с брокером) и polling.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"broker", w.conn != nil,
	)

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    mq.QueueSyncRequested,
			Handler:  w.handleSyncRequested,
			Prefetch: defaultPrefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("sync consumer error", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и ждёт завершения текущего run.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// runs, созданные пока воркер был выключен
	w.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll обрабатывает PENDING runs из БД.
func (w *Worker) Poll(ctx context.Context) {
	runs, err := w.runs.ListPending(ctx, w.batchSize)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to list pending runs", "error", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	w.logger.DebugContext(ctx, "poll found pending runs", "count", len(runs))

	for i := range runs {
		if w.IsStopped() {
			return
		}
		err := w.ProcessRun(ctx, runs[i].ID)
		if err != nil && !errors.Is(err, ErrRunNotPending) && !errors.Is(err, ErrRunNotFound) {
			w.logger.ErrorContext(ctx, "failed to process run from poll",
				"run_id", runs[i].ID,
				"error", err,
			)
		}
	}
}
