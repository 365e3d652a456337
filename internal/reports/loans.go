package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
)

// DefaultPastBillsMonths — глубина PastBills по умолчанию.
const DefaultPastBillsMonths = 3

// InsuranceItem — действующая страховка.
type InsuranceItem struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	PaymentAmount float64      `json:"payment_amount"`
	StartDate     domain.Date  `json:"start_date"`
	EndDate       *domain.Date `json:"end_date"`
	Period        string       `json:"period"`
	Provider      *string      `json:"provider"`
	Notes         *string      `json:"notes"`
}

// Insurance возвращает незакрытые страховки по дате окончания.
func (s *Service) Insurance(ctx context.Context) ([]InsuranceItem, error) {
	items, err := s.store.LoanRenewals(ctx)
	if err != nil {
		return nil, fmt.Errorf("insurance: %w", err)
	}

	result := []InsuranceItem{}
	for _, l := range items {
		if l.Type != domain.LoanRenewalInsurance || l.Closed {
			continue
		}
		result = append(result, InsuranceItem{
			ID:            l.ID,
			Name:          l.Name,
			PaymentAmount: l.PaymentAmount,
			StartDate:     l.StartDate,
			EndDate:       l.EndDate,
			Period:        string(l.Period),
			Provider:      l.Provider,
			Notes:         l.Notes,
		})
	}
	// без даты окончания — в конце
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i].EndDate, result[j].EndDate
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.Before(b.Time)
	})
	return result, nil
}

// RemainingBalance оценивает остаток кредита на месяц now: начальный баланс
// минус платежи за полные месяцы с start_date, но не меньше нуля.
func RemainingBalance(l domain.LoanRenewal, now time.Time) float64 {
	elapsed := monthsDiff(domain.MonthStart(l.StartDate.Time), domain.MonthStart(now))
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Max(l.StartingBalance-l.MonthlyCost()*float64(elapsed), 0)
}

// LoanPortfolio — прогноз остатков по кредитам.
type LoanPortfolio struct {
	Count       int              `json:"count"`
	TotalCredit float64          `json:"total_credit"`
	Accounts    []map[string]any `json:"accounts"`
}

// LoanPortfolio прогнозирует остатки кредитов, заканчивающихся после текущего
// месяца. Для каждого месяца до окончания последнего кредита Accounts содержит
// дату и остаток каждого кредита по имени.
func (s *Service) LoanPortfolio(ctx context.Context) (*LoanPortfolio, error) {
	items, err := s.store.LoanRenewals(ctx)
	if err != nil {
		return nil, fmt.Errorf("loan portfolio: %w", err)
	}

	today := domain.MonthStart(s.now().UTC())
	var loans []domain.LoanRenewal
	for _, l := range items {
		if l.Type == domain.LoanRenewalLoan && l.EndDate != nil && l.EndDate.After(today) {
			loans = append(loans, l)
		}
	}
	result := &LoanPortfolio{Count: len(loans), Accounts: []map[string]any{}}
	if len(loans) == 0 {
		return result, nil
	}
	sort.SliceStable(loans, func(i, j int) bool { return loans[i].EndDate.After(loans[j].EndDate.Time) })

	remaining := make([]float64, len(loans))
	for i, l := range loans {
		remaining[i] = RemainingBalance(l, today)
		result.TotalCredit += remaining[i]
	}

	months := monthsDiff(today, loans[0].EndDate.Time)
	for m := 0; m < months; m++ {
		entry := map[string]any{"date": domain.NewDate(today.AddDate(0, m, 0))}
		for i, l := range loans {
			entry[l.Name] = math.Max(remaining[i]-l.MonthlyCost()*float64(m+1), 0)
		}
		result.Accounts = append(result.Accounts, entry)
	}
	return result, nil
}

// RenewalTotal — количество и сумма платежей одного типа и периода.
type RenewalTotal struct {
	Type   string  `json:"type"`
	Period string  `json:"period"`
	Count  int     `json:"count"`
	Total  float64 `json:"total"`
}

// LoanEntity — кредит в обзоре.
type LoanEntity struct {
	Name             string       `json:"name"`
	Provider         *string      `json:"provider"`
	EndDate          *domain.Date `json:"end_date"`
	StartingBalance  float64      `json:"starting_balance"`
	RemainingBalance float64      `json:"remaining_balance"`
}

// SubscriptionEntity — подписка в обзоре.
type SubscriptionEntity struct {
	Name          string      `json:"name"`
	Provider      *string     `json:"provider"`
	PaymentAmount float64     `json:"payment_amount"`
	StartDate     domain.Date `json:"start_date"`
	Period        string      `json:"period"`
}

// LoansRenewalsOverview — обзор кредитов, подписок и страховок.
type LoansRenewalsOverview struct {
	Counts struct {
		Loans         int `json:"loans"`
		Subscriptions int `json:"subscriptions"`
		Insurance     int `json:"insurance"`
	} `json:"counts"`
	Credit struct {
		Total int64 `json:"total"`
	} `json:"credit"`
	Loans struct {
		Debt             float64      `json:"debt"`
		RemainingBalance float64      `json:"remaining_balance"`
		Data             []LoanEntity `json:"data"`
	} `json:"loans"`
	Subscriptions struct {
		Data          []SubscriptionEntity `json:"data"`
		TotalsMonthly float64              `json:"totals_monthly"`
		TotalsYearly  float64              `json:"totals_yearly"`
	} `json:"subscriptions"`
	Totals struct {
		Data []RenewalTotal `json:"data"`
	} `json:"totals"`
}

// LoansRenewalsOverview собирает обзор незакрытых обязательств и баланс кредитных карт.
func (s *Service) LoansRenewalsOverview(ctx context.Context) (*LoansRenewalsOverview, error) {
	items, err := s.store.LoanRenewals(ctx)
	if err != nil {
		return nil, fmt.Errorf("loans renewals overview: %w", err)
	}
	accounts, err := s.store.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loans renewals overview: %w", err)
	}

	now := s.now().UTC()
	o := &LoansRenewalsOverview{}
	o.Loans.Data = []LoanEntity{}
	o.Subscriptions.Data = []SubscriptionEntity{}
	o.Totals.Data = []RenewalTotal{}

	type totalKey struct{ typ, period string }
	index := make(map[totalKey]int)
	for _, l := range items {
		if l.Closed {
			continue
		}

		key := totalKey{string(l.Type), string(l.Period)}
		i, ok := index[key]
		if !ok {
			i = len(o.Totals.Data)
			index[key] = i
			o.Totals.Data = append(o.Totals.Data, RenewalTotal{Type: key.typ, Period: key.period})
		}
		o.Totals.Data[i].Count++
		o.Totals.Data[i].Total += l.PaymentAmount

		switch l.Type {
		case domain.LoanRenewalLoan:
			o.Counts.Loans++
			remaining := RemainingBalance(l, now)
			o.Loans.Debt += l.StartingBalance
			o.Loans.RemainingBalance += remaining
			o.Loans.Data = append(o.Loans.Data, LoanEntity{
				Name:             l.Name,
				Provider:         l.Provider,
				EndDate:          l.EndDate,
				StartingBalance:  l.StartingBalance,
				RemainingBalance: remaining,
			})
		case domain.LoanRenewalSubscription:
			o.Counts.Subscriptions++
			o.Subscriptions.Data = append(o.Subscriptions.Data, SubscriptionEntity{
				Name:          l.Name,
				Provider:      l.Provider,
				PaymentAmount: l.PaymentAmount,
				StartDate:     l.StartDate,
				Period:        string(l.Period),
			})
			switch l.Period {
			case domain.PeriodMonthly:
				o.Subscriptions.TotalsMonthly += l.PaymentAmount
			case domain.PeriodYearly:
				o.Subscriptions.TotalsYearly += l.PaymentAmount
			}
		case domain.LoanRenewalInsurance:
			o.Counts.Insurance++
		}
	}

	for _, a := range accounts {
		if a.IsCreditCard() {
			o.Credit.Total += a.Balance
		}
	}
	return o, nil
}

// BillTransaction — платёж по счёту.
type BillTransaction struct {
	Amount      int64       `json:"amount"`
	Date        domain.Date `json:"date"`
	Memo        *string     `json:"memo"`
	Payee       *string     `json:"payee"`
	Subcategory *string     `json:"subcategory"`
}

// Bill — ежемесячный счёт (подкатегория группы Bills) за прошлый месяц.
type Bill struct {
	Name         string            `json:"name"`
	Amount       int64             `json:"amount"`
	Transactions []BillTransaction `json:"transactions"`
}

// Renewal — платёж по кредиту или продлению в текущем месяце.
type Renewal struct {
	Amount   float64     `json:"amount"`
	Date     domain.Date `json:"date"`
	Name     string      `json:"name"`
	Period   string      `json:"period"`
	Category string      `json:"category"`
}

// UpcomingBills — ожидаемые обязательные платежи месяца (в валюте).
type UpcomingBills struct {
	Total         float64   `json:"total"`
	TotalBills    float64   `json:"total_bills"`
	CountBills    int       `json:"count_bills"`
	TotalLoans    float64   `json:"total_loans"`
	TotalRenewals float64   `json:"total_renewals"`
	Bills         []Bill    `json:"bills"`
	Loans         []Renewal `json:"loans"`
	Renewals      []Renewal `json:"renewals"`
}

// UpcomingBills оценивает платежи текущего месяца: счета берутся из прошлого
// месяца, кредиты и продления — те, что приходятся на текущий.
func (s *Service) UpcomingBills(ctx context.Context) (*UpcomingBills, error) {
	now := s.now().UTC()
	thisMonth := domain.MonthStart(now)
	lastMonth := thisMonth.AddDate(0, -1, 0)

	rows, err := s.store.Transactions(ctx, domain.TxFilter{
		From:  lastMonth,
		To:    thisMonth.Add(-time.Second),
		Debit: domain.Debits(),
		Group: s.groups.Bills,
	})
	if err != nil {
		return nil, fmt.Errorf("upcoming bills: %w", err)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date.Time) })

	result := &UpcomingBills{
		CountBills: len(rows),
		Bills:      []Bill{},
		Loans:      []Renewal{},
		Renewals:   []Renewal{},
	}

	index := make(map[string]int)
	var billsTotal int64
	for _, r := range rows {
		name := r.SubcategoryName()
		i, ok := index[name]
		if !ok {
			i = len(result.Bills)
			index[name] = i
			result.Bills = append(result.Bills, Bill{Name: name})
		}
		result.Bills[i].Amount += r.Amount
		result.Bills[i].Transactions = append(result.Bills[i].Transactions, BillTransaction{
			Amount:      r.Amount,
			Date:        r.Date,
			Memo:        r.Memo,
			Payee:       r.Payee,
			Subcategory: r.Subcategory,
		})
		billsTotal += r.Amount
	}

	items, err := s.store.LoanRenewals(ctx)
	if err != nil {
		return nil, fmt.Errorf("upcoming bills: %w", err)
	}
	for _, l := range items {
		if !l.RenewsIn(now) {
			continue
		}
		entry := Renewal{
			Amount:   l.PaymentAmount,
			Date:     l.StartDate,
			Name:     l.Name,
			Period:   string(l.Period),
			Category: string(l.Type),
		}
		if l.Type == domain.LoanRenewalLoan {
			result.Loans = append(result.Loans, entry)
			result.TotalLoans += entry.Amount
		} else {
			result.Renewals = append(result.Renewals, entry)
			result.TotalRenewals += entry.Amount
		}
	}

	result.TotalBills = float64(billsTotal) / 1000
	result.Total = result.TotalBills + result.TotalLoans + result.TotalRenewals
	return result, nil
}

// CardBill — оплаты кредитных карт за месяц. Суммы по картам выводятся
// отдельными полями по имени карты.
type CardBill struct {
	Date  domain.Date
	Total int64
	Cards map[string]int64
}

// MarshalJSON реализует json.Marshaler.
func (b CardBill) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.Cards)+2)
	for name, amount := range b.Cards {
		out[name] = amount
	}
	out["date"] = b.Date
	out["total"] = b.Total
	return json.Marshal(out)
}

// PastBillsSummary — динамика оплат карт.
type PastBillsSummary struct {
	LastMonthDiff  int64   `json:"last_month_diff"`
	AvgTrend       float64 `json:"avg_trend"`
	LastMonthTrend float64 `json:"last_month_trend"`
}

// PastBills — оплаты карт за прошлые месяцы.
type PastBills struct {
	Summary PastBillsSummary `json:"summary"`
	Data    []CardBill       `json:"data"`
}

// PastBills суммирует оплаты кредитных карт за months полных прошлых месяцев
// (текущий месяц не входит). Data упорядочены от старого месяца к новому.
func (s *Service) PastBills(ctx context.Context, months int) (*PastBills, error) {
	if months == 0 {
		months = DefaultPastBillsMonths
	}
	if months < 0 {
		return nil, fmt.Errorf("%w: months must be positive, got %d", ErrInvalidPeriod, months)
	}

	today := domain.MonthStart(s.now().UTC())
	start := today.AddDate(0, -months, 0)

	payments, err := s.store.CardPayments(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("past bills: %w", err)
	}
	accounts, err := s.store.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("past bills: %w", err)
	}

	cards := make(map[string]bool)
	for _, a := range accounts {
		if a.IsCreditCard() && !a.Closed {
			cards[a.Name] = true
		}
	}
	for _, p := range payments {
		cards[p.AccountName] = true
	}

	data := make([]CardBill, 0, months)
	for m := months; m >= 1; m-- {
		month := today.AddDate(0, -m, 0)
		bill := CardBill{Date: domain.NewDate(month), Cards: make(map[string]int64, len(cards))}
		for name := range cards {
			bill.Cards[name] = 0
		}
		for _, p := range payments {
			if p.Date.Year() == month.Year() && p.Date.Month() == month.Month() {
				bill.Cards[p.AccountName] += p.Amount
				bill.Total += p.Amount
			}
		}
		data = append(data, bill)
	}

	return &PastBills{Summary: pastBillsSummary(data), Data: data}, nil
}

// pastBillsSummary считает процентные изменения месяц к месяцу. Месяцы
// с нулевой суммой не дают изменения для следующего месяца.
func pastBillsSummary(data []CardBill) PastBillsSummary {
	var summary PastBillsSummary
	if len(data) < 2 {
		return summary
	}

	var changes []float64
	for i := 1; i < len(data); i++ {
		prev := data[i-1].Total
		if prev == 0 {
			continue
		}
		changes = append(changes, float64(data[i].Total-prev)/float64(prev)*100)
	}
	if len(changes) > 0 {
		var sum float64
		for _, c := range changes {
			sum += c
		}
		summary.AvgTrend = math.Round(sum / float64(len(changes)))
		summary.LastMonthTrend = math.Round(changes[len(changes)-1])
	}

	summary.LastMonthDiff = data[len(data)-1].Total - data[len(data)-2].Total
	return summary
}

// Savings возвращает записи накоплений за год (0 — текущий год).
func (s *Service) Savings(ctx context.Context, year int) ([]domain.Saving, error) {
	if year == 0 {
		year = s.now().UTC().Year()
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	savings, err := s.store.Savings(ctx, start, start.AddDate(1, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("savings: %w", err)
	}
	return nonNil(savings), nil
}

// monthsDiff возвращает число полных месяцев от from до to.
func monthsDiff(from, to time.Time) int {
	n := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		n--
	}
	return n
}
