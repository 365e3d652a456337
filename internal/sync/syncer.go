package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
	"github.com/shaiso/ynab-portal/internal/repo"
)

// ErrUnknownJob — неизвестная задача синхронизации.
var ErrUnknownJob = errors.New("unknown sync job")

// Client — выборки из YNAB.
type Client interface {
	BudgetID() string
	Accounts(ctx context.Context, knowledge int64) ([]domain.Account, int64, error)
	Categories(ctx context.Context, knowledge int64) ([]domain.Category, int64, error)
	Months(ctx context.Context, knowledge int64) ([]domain.MonthSummary, int64, error)
	Month(ctx context.Context, month time.Time) ([]domain.MonthCategory, error)
	Payees(ctx context.Context, knowledge int64) ([]domain.Payee, int64, error)
	Transactions(ctx context.Context, since time.Time, knowledge int64) ([]domain.Transaction, int64, error)
}

// Store — запись синхронизированных данных.
type Store interface {
	GetServerKnowledge(ctx context.Context, route string) (*domain.ServerKnowledge, error)
	SaveServerKnowledge(ctx context.Context, budgetID, route string, knowledge int64, now time.Time) error

	UpsertAccounts(ctx context.Context, accounts []domain.Account) (repo.UpsertStats, error)
	UpsertCategories(ctx context.Context, categories []domain.Category) (repo.UpsertStats, error)
	UpsertPayees(ctx context.Context, payees []domain.Payee) (repo.UpsertStats, error)
	UpsertMonthSummaries(ctx context.Context, months []domain.MonthSummary) (repo.UpsertStats, error)
	UpsertTransactions(ctx context.Context, txs []domain.Transaction) (repo.UpsertStats, error)

	MonthSummaryByMonth(ctx context.Context, month time.Time) (*domain.MonthSummary, error)
	CountMonthCategories(ctx context.Context, monthSummaryID uuid.UUID) (int, error)
	UpsertMonthCategories(ctx context.Context, monthSummaryID uuid.UUID, cats []domain.MonthCategory) (repo.UpsertStats, error)

	ListUnlinkedTransactions(ctx context.Context) ([]repo.UnlinkedTransaction, error)
	LinkTransactionCategories(ctx context.Context) (int64, error)
	LinkCardPayments(ctx context.Context) (int64, error)

	FindSaving(ctx context.Context, name string, month time.Time) (*domain.Saving, error)
	SetSavingAmount(ctx context.Context, id uuid.UUID, amount float64) error
	MonthCashFlow(ctx context.Context, month time.Time) (income, spent int64, err error)
}

// Options — параметры запуска.
type Options struct {
	// Force — игнорировать last_updated и запросить YNAB повторно.
	Force bool
	// Since — нижняя граница даты для транзакций (нулевое — все).
	Since time.Time
}

// Result — итог задачи.
type Result struct {
	Job             domain.Job `json:"job"`
	Skipped         bool       `json:"skipped"`
	Message         string     `json:"message"`
	Created         int        `json:"created"`
	Updated         int        `json:"updated"`
	ServerKnowledge int64      `json:"server_knowledge,omitempty"`
	// Related — производные задачи, выполненные вместе с основной.
	Related []*Result `json:"related,omitempty"`
}

// Config — конфигурация Syncer.
type Config struct {
	Client Client
	Store  Store

	// SavingsName — имя записи накоплений, которую обновляет задача savings.
	SavingsName string

	Logger *slog.Logger
	// Now возвращает текущее время. По умолчанию time.Now.
	Now func() time.Time
}

// Syncer выполняет задачи синхронизации.
type Syncer struct {
	client      Client
	store       Store
	savingsName string
	logger      *slog.Logger
	now         func() time.Time
}

// New создаёт Syncer.
func New(cfg Config) *Syncer {
	if cfg.SavingsName == "" {
		cfg.SavingsName = "Monthly"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Syncer{
		client:      cfg.Client,
		store:       cfg.Store,
		savingsName: cfg.SavingsName,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
}

// Run выполняет задачу job.
func (s *Syncer) Run(ctx context.Context, job domain.Job, opts Options) (*Result, error) {
	logger := s.logger.With("job", job.String())
	logger.InfoContext(ctx, "sync started", "force", opts.Force)

	var (
		res *Result
		err error
	)
	switch job {
	case domain.JobAccounts:
		res, err = s.syncAccounts(ctx, opts)
	case domain.JobCategories:
		res, err = s.syncCategories(ctx, opts)
	case domain.JobPayees:
		res, err = s.syncPayees(ctx, opts)
	case domain.JobMonthSummaries:
		res, err = s.syncMonthSummaries(ctx, opts)
	case domain.JobTransactions:
		res, err = s.syncTransactions(ctx, opts)
	case domain.JobMonthDetails:
		res, err = s.syncMonthDetails(ctx)
	case domain.JobTransactionRels:
		res, err = s.syncTransactionRels(ctx)
	case domain.JobCardPayments:
		res, err = s.syncCardPayments(ctx)
	case domain.JobSavings:
		res, err = s.syncSavings(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}
	if err != nil {
		logger.ErrorContext(ctx, "sync failed", "error", err)
		return nil, fmt.Errorf("sync %s: %w", job, err)
	}

	logger.InfoContext(ctx, "sync finished",
		"skipped", res.Skipped,
		"created", res.Created,
		"updated", res.Updated,
		"message", res.Message,
	)
	return res, nil
}
