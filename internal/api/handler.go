package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
	"github.com/shaiso/ynab-portal/internal/repo"
	"github.com/shaiso/ynab-portal/internal/reports"
	ynabsync "github.com/shaiso/ynab-portal/internal/sync"
	"github.com/shaiso/ynab-portal/internal/telemetry"
)

// AdminStore — обобщённый CRUD над ресурсами react-admin.
type AdminStore interface {
	List(ctx context.Context, res *repo.Resource, p repo.ListParams) ([]repo.Record, int, error)
	GetMany(ctx context.Context, res *repo.Resource, ids []string) ([]repo.Record, error)
	Get(ctx context.Context, res *repo.Resource, id string) (repo.Record, error)
	Create(ctx context.Context, res *repo.Resource, body map[string]any) (repo.Record, error)
	Update(ctx context.Context, res *repo.Resource, id string, body map[string]any) (repo.Record, error)
	Delete(ctx context.Context, res *repo.Resource, id string) (repo.Record, error)
	DeleteMany(ctx context.Context, res *repo.Resource, ids []string) (int64, error)
}

// RunStore — хранилище sync runs.
type RunStore interface {
	Create(ctx context.Context, run *domain.SyncRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SyncRun, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.SyncRun, error)
	Update(ctx context.Context, run *domain.SyncRun) error
}

// ScheduleStore — хранилище расписаний.
type ScheduleStore interface {
	Create(ctx context.Context, s *domain.SyncSchedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SyncSchedule, error)
	List(ctx context.Context, filter repo.ScheduleFilter) ([]domain.SyncSchedule, error)
	Update(ctx context.Context, s *domain.SyncSchedule) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

// Syncer выполняет задачу синхронизации.
type Syncer interface {
	Run(ctx context.Context, job domain.Job, opts ynabsync.Options) (*ynabsync.Result, error)
}

// Publisher ставит run в очередь воркеров.
type Publisher interface {
	PublishSyncRequested(ctx context.Context, run *domain.SyncRun) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	admin     AdminStore
	reports   *reports.Service
	syncer    Syncer
	runs      RunStore
	schedules ScheduleStore
	publisher Publisher
	metrics   *telemetry.Metrics
	auth      AuthConfig
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
// Незаданные зависимости отключают соответствующие маршруты.
type Config struct {
	Admin     AdminStore
	Reports   *reports.Service
	Syncer    Syncer
	Runs      RunStore
	Schedules ScheduleStore
	Publisher Publisher // опционально, без него runs забираются воркером через polling
	Metrics   *telemetry.Metrics
	Auth      AuthConfig
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Named("api")
	}
	return &Handler{
		admin:     cfg.Admin,
		reports:   cfg.Reports,
		syncer:    cfg.Syncer,
		runs:      cfg.Runs,
		schedules: cfg.Schedules,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		auth:      cfg.Auth,
		logger:    logger,
	}
}
