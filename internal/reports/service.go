package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/ynab-portal/internal/domain"
)

// Store — выборки, на которых строятся отчёты.
type Store interface {
	Transactions(ctx context.Context, f domain.TxFilter) ([]domain.TransactionRow, error)
	CountUncategorised(ctx context.Context) (int, error)
	CategoryBudgets(ctx context.Context) ([]domain.CategoryBudget, error)
	LoanRenewals(ctx context.Context) ([]domain.LoanRenewal, error)
	Accounts(ctx context.Context) ([]domain.Account, error)
	Savings(ctx context.Context, from, to time.Time) ([]domain.Saving, error)
	CardPayments(ctx context.Context, since time.Time) ([]domain.CardPaymentRow, error)
}

// Groups — имена групп категорий, определяющие, что считается тратой.
type Groups struct {
	Expense     []string // группы, в которых ищутся возвраты
	NonSpend    []string // исключаются из трат
	NonCategory []string // исключаются из сводки по категориям
	NoBudget    []string // не требуют бюджета
	Bills       string   // группа ежемесячных счетов
}

// DefaultGroups возвращает стандартный набор групп.
func DefaultGroups() Groups {
	return Groups{
		Expense:     domain.ExpenseGroups,
		NonSpend:    domain.NonSpendGroups,
		NonCategory: domain.NonCategoryGroups,
		NoBudget:    domain.NoBudgetGroups,
		Bills:       domain.BillsGroup,
	}
}

// Config — конфигурация Service.
type Config struct {
	Store       Store
	Groups      Groups
	IncomePayee string
	Logger      *slog.Logger
	// Now возвращает текущее время. По умолчанию time.Now.
	Now func() time.Time
}

// Service строит отчёты.
type Service struct {
	store       Store
	groups      Groups
	incomePayee string
	logger      *slog.Logger
	now         func() time.Time
}

// New создаёт новый Service. Незаданные группы берутся из DefaultGroups.
func New(cfg Config) *Service {
	groups := cfg.Groups
	defaults := DefaultGroups()
	if len(groups.Expense) == 0 {
		groups.Expense = defaults.Expense
	}
	if len(groups.NonSpend) == 0 {
		groups.NonSpend = defaults.NonSpend
	}
	if len(groups.NonCategory) == 0 {
		groups.NonCategory = defaults.NonCategory
	}
	if len(groups.NoBudget) == 0 {
		groups.NoBudget = defaults.NoBudget
	}
	if groups.Bills == "" {
		groups.Bills = defaults.Bills
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		store:       cfg.Store,
		groups:      groups,
		incomePayee: cfg.IncomePayee,
		logger:      logger,
		now:         now,
	}
}

// spendFilter — траты за период: списания без переводов вне NonSpend.
func (s *Service) spendFilter(start, end time.Time) domain.TxFilter {
	return domain.TxFilter{
		From:             start,
		To:               end,
		Debit:            domain.Debits(),
		ExcludeTransfers: true,
		GroupsNotIn:      s.groups.NonSpend,
	}
}

// today возвращает текущую дату в UTC.
func (s *Service) today() time.Time {
	return domain.NewDate(s.now().UTC()).Time
}

// Transaction — транзакция в ответе отчёта.
type Transaction = domain.TransactionRow

func sumAmounts(rows []domain.TransactionRow) int64 {
	var total int64
	for _, r := range rows {
		total += r.Amount
	}
	return total
}

// nonNil гарантирует "[]" вместо null в JSON.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
