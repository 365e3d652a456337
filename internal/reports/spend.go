package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
)

// MaxDailySpendDays — максимальная глубина отчёта по дням.
const MaxDailySpendDays = 7

// PayeeTotal — траты по одному получателю.
type PayeeTotal struct {
	PayeeName *string `json:"payee_name"`
	Count     int     `json:"count"`
	Total     int64   `json:"total"`
}

// PayeeSummary — траты по получателям, от большего к меньшему.
type PayeeSummary struct {
	Count      int          `json:"count"`
	TopSpender *PayeeTotal  `json:"topspender"`
	Data       []PayeeTotal `json:"data"`
}

// PayeeSummary возвращает траты за период по получателям.
func (s *Service) PayeeSummary(ctx context.Context, p Period) (*PayeeSummary, error) {
	start, end := p.Range(s.now())
	rows, err := s.store.Transactions(ctx, s.spendFilter(start, end))
	if err != nil {
		return nil, fmt.Errorf("payee summary: %w", err)
	}
	return summarisePayees(rows), nil
}

func summarisePayees(rows []domain.TransactionRow) *PayeeSummary {
	var data []PayeeTotal
	index := make(map[string]int)
	for _, r := range rows {
		name := r.PayeeName()
		i, ok := index[name]
		if !ok {
			i = len(data)
			index[name] = i
			data = append(data, PayeeTotal{PayeeName: r.Payee})
		}
		data[i].Count++
		data[i].Total += r.Amount
	}
	sort.SliceStable(data, func(i, j int) bool { return data[i].Total > data[j].Total })

	summary := &PayeeSummary{Count: len(data), Data: nonNil(data)}
	if len(data) > 0 {
		top := data[0]
		summary.TopSpender = &top
	}
	return summary
}

// Refunds — возвраты (поступления) в группах расходов.
type Refunds struct {
	Count        int           `json:"count"`
	Transactions []Transaction `json:"transactions"`
	Total        int64         `json:"total"`
}

// Refunds возвращает поступления за период в группах Expense. Если задана
// подкатегория, только в ней.
func (s *Service) Refunds(ctx context.Context, p Period, category, subcategory string) (*Refunds, error) {
	start, end := p.Range(s.now())
	filter := domain.TxFilter{
		From:  start,
		To:    end,
		Debit: domain.Credits(),
	}
	if category == "" {
		filter.GroupsIn = s.groups.Expense
	} else {
		filter.Group = category
		filter.Subcategory = unslug(subcategory)
	}

	rows, err := s.store.Transactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("refunds: %w", err)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date.Time) {
			return rows[i].Date.Before(rows[j].Date.Time)
		}
		return rows[i].Amount > rows[j].Amount
	})

	return &Refunds{Count: len(rows), Transactions: nonNil(rows), Total: sumAmounts(rows)}, nil
}

// AccountSpend — траты по счёту.
type AccountSpend struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Balance int64     `json:"balance"`
}

// TransactionSummary — сводка трат за период.
type TransactionSummary struct {
	Total            int64          `json:"total"`
	Accounts         []AccountSpend `json:"accounts"`
	AveragePurchase  float64        `json:"average_purchase"`
	TransactionCount int            `json:"transaction_count"`
	BiggestPurchase  *Transaction   `json:"biggest_purchase"`
	Transactions     []Transaction  `json:"transactions"`
	Refunds          *Refunds       `json:"refunds"`
}

// TransactionSummary возвращает траты за период по счетам за вычетом возвратов.
func (s *Service) TransactionSummary(ctx context.Context, p Period) (*TransactionSummary, error) {
	start, end := p.Range(s.now())
	rows, err := s.store.Transactions(ctx, s.spendFilter(start, end))
	if err != nil {
		return nil, fmt.Errorf("transaction summary: %w", err)
	}

	refunds, err := s.Refunds(ctx, p, "", "")
	if err != nil {
		return nil, err
	}
	return s.summariseTransactions(ctx, rows, refunds)
}

// summariseTransactions считает траты по счетам. Среднее считается до вычета возвратов.
func (s *Service) summariseTransactions(ctx context.Context, rows []domain.TransactionRow, refunds *Refunds) (*TransactionSummary, error) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.After(rows[j].Date.Time) })

	summary := &TransactionSummary{
		Accounts:         []AccountSpend{},
		TransactionCount: len(rows),
		Transactions:     nonNil(rows),
		Refunds:          refunds,
	}

	index := make(map[uuid.UUID]int)
	for i := range rows {
		r := &rows[i]
		summary.Total += r.Amount
		if summary.BiggestPurchase == nil || r.Amount > summary.BiggestPurchase.Amount {
			summary.BiggestPurchase = r
		}

		ai, ok := index[r.AccountID]
		if !ok {
			ai = len(summary.Accounts)
			index[r.AccountID] = ai
			summary.Accounts = append(summary.Accounts, AccountSpend{ID: r.AccountID, Name: r.AccountName})
		}
		summary.Accounts[ai].Balance += r.Amount
	}
	sort.SliceStable(summary.Accounts, func(i, j int) bool {
		return summary.Accounts[i].Balance > summary.Accounts[j].Balance
	})

	if summary.TransactionCount > 0 {
		summary.AveragePurchase = float64(summary.Total) / float64(summary.TransactionCount)
	}
	summary.Total -= refunds.Total

	s.logger.DebugContext(ctx, "transactions summarised",
		"count", summary.TransactionCount,
		"accounts", len(summary.Accounts),
		"refunds", refunds.Total,
	)
	return summary, nil
}

// DaySpend — траты за один день.
type DaySpend struct {
	Date         string        `json:"date"`
	Total        int64         `json:"total"`
	Transactions []Transaction `json:"transactions"`
}

// DailySpend — траты по дням.
type DailySpend struct {
	Total int64      `json:"total"`
	Days  []DaySpend `json:"days"`
}

// DailySpend возвращает траты за последние numDays дней и сегодня.
func (s *Service) DailySpend(ctx context.Context, numDays int) (*DailySpend, error) {
	if numDays < 1 || numDays > MaxDailySpendDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d, got %d", ErrInvalidPeriod, MaxDailySpendDays, numDays)
	}

	today := s.today()
	start := today.AddDate(0, 0, -numDays)
	rows, err := s.store.Transactions(ctx, s.spendFilter(start, today))
	if err != nil {
		return nil, fmt.Errorf("daily spend: %w", err)
	}

	byDate := make(map[string][]Transaction)
	for _, r := range rows {
		key := r.Date.String()
		byDate[key] = append(byDate[key], r)
	}

	result := &DailySpend{}
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(domain.DateLayout)
		day := DaySpend{Date: key, Transactions: nonNil(byDate[key])}
		day.Total = sumAmounts(day.Transactions)
		result.Total += day.Total
		result.Days = append(result.Days, day)
	}
	return result, nil
}

// LastPeriodSalary возвращает последнюю зарплату (поступление от IncomePayee)
// в интервале [start, end] или 0.
func (s *Service) LastPeriodSalary(ctx context.Context, start, end time.Time) (int64, error) {
	if s.incomePayee == "" {
		return 0, nil
	}
	rows, err := s.store.Transactions(ctx, domain.TxFilter{
		From:  start,
		To:    end,
		Debit: domain.Credits(),
		Payee: s.incomePayee,
	})
	if err != nil {
		return 0, fmt.Errorf("last period salary: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	// строки отсортированы от новых к старым
	return rows[0].Amount, nil
}

// MonthBalance — основные показатели месяца.
type MonthBalance struct {
	DaysLeft         int     `json:"days_left"`
	BalanceAvailable int64   `json:"balance_available"`
	BalanceSpent     int64   `json:"balance_spent"`
	BalanceBudget    float64 `json:"balance_budget"`
	DailySpend       float64 `json:"daily_spend"`
}

// IncomeExpenses — доходы и расходы месяца в milliunits.
type IncomeExpenses struct {
	Income           int64 `json:"income"`
	Bills            int64 `json:"bills"`
	BalanceSpent     int64 `json:"balance_spent"`
	BalanceAvailable int64 `json:"balance_available"`
	Savings          int64 `json:"savings"`
}

// MonthSummary — сводка месяца.
type MonthSummary struct {
	Notif          *string        `json:"notif"`
	Summary        MonthBalance   `json:"summary"`
	IncomeExpenses IncomeExpenses `json:"income_expenses"`
}

// MonthSummary считает доступный остаток периода:
// зарплата за прошлый месяц − (траты − возвраты + счета) − цель накоплений.
//
// Для текущего месяца daily_spend — сколько можно тратить в день до конца месяца,
// для прошлых — средние траты в день.
func (s *Service) MonthSummary(ctx context.Context, p Period) (*MonthSummary, error) {
	now := s.now().UTC()
	start, end := p.Range(now)

	rows, err := s.store.Transactions(ctx, s.spendFilter(start, end))
	if err != nil {
		return nil, fmt.Errorf("month summary: %w", err)
	}
	refunds, err := s.Refunds(ctx, p, "", "")
	if err != nil {
		return nil, err
	}
	spent := sumAmounts(rows) - refunds.Total

	dashboard, err := s.BudgetsDashboard(ctx)
	if err != nil {
		return nil, err
	}
	budget := dashboard.Total * float64(MonthsBetween(start, end))

	savingsRows, err := s.store.Savings(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("month summary: %w", err)
	}
	var savings int64
	if len(savingsRows) > 0 {
		savings = toMilliunits(savingsRows[0].Target)
	}

	upcoming, err := s.UpcomingBills(ctx)
	if err != nil {
		return nil, err
	}
	bills := toMilliunits(upcoming.Total)

	income, err := s.LastPeriodSalary(ctx, start.AddDate(0, -1, 0), start)
	if err != nil {
		return nil, err
	}

	available := income - (spent + bills) - savings
	s.logger.DebugContext(ctx, "month balance calculated",
		"income", income,
		"spent", spent,
		"bills", bills,
		"savings", savings,
		"available", available,
	)

	balance := MonthBalance{
		BalanceAvailable: available,
		BalanceSpent:     spent,
		BalanceBudget:    budget,
	}
	if start.Year() == now.Year() && start.Month() == now.Month() {
		balance.DaysLeft = domain.MonthEnd(now).Day() - now.Day()
		balance.DailySpend = float64(available)
		if balance.DaysLeft != 0 {
			balance.DailySpend = float64(available) / float64(balance.DaysLeft)
		}
	} else {
		balance.DailySpend = float64(spent) / float64(domain.MonthEnd(start).Day())
	}

	uncategorised, err := s.store.CountUncategorised(ctx)
	if err != nil {
		return nil, fmt.Errorf("month summary: %w", err)
	}

	return &MonthSummary{
		Notif:   uncategorisedNotice(uncategorised),
		Summary: balance,
		IncomeExpenses: IncomeExpenses{
			Income:           income,
			Bills:            bills,
			BalanceSpent:     spent,
			BalanceAvailable: available,
			Savings:          savings,
		},
	}, nil
}

func uncategorisedNotice(n int) *string {
	var text string
	switch {
	case n > 1:
		text = fmt.Sprintf("%d uncategorised transactions", n)
	case n == 1:
		text = "1 uncategorised transaction"
	default:
		return nil
	}
	return &text
}
