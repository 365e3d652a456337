package reports

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
)

// --- Fake store ---

type fakeStore struct {
	rows          []domain.TransactionRow
	categories    []domain.CategoryBudget
	loans         []domain.LoanRenewal
	accounts      []domain.Account
	savings       []domain.Saving
	payments      []domain.CardPaymentRow
	uncategorised int
	err           error
}

func (f *fakeStore) Transactions(_ context.Context, filter domain.TxFilter) ([]domain.TransactionRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.TransactionRow
	for _, r := range f.rows {
		if filter.Match(&r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date.Time) })
	return out, nil
}

func (f *fakeStore) CountUncategorised(context.Context) (int, error) { return f.uncategorised, f.err }

func (f *fakeStore) CategoryBudgets(context.Context) ([]domain.CategoryBudget, error) {
	return f.categories, f.err
}

func (f *fakeStore) LoanRenewals(context.Context) ([]domain.LoanRenewal, error) {
	return f.loans, f.err
}

func (f *fakeStore) Accounts(context.Context) ([]domain.Account, error) { return f.accounts, f.err }

func (f *fakeStore) Savings(_ context.Context, from, to time.Time) ([]domain.Saving, error) {
	var out []domain.Saving
	for _, s := range f.savings {
		if !s.Date.Before(from) && !s.Date.After(to) {
			out = append(out, s)
		}
	}
	return out, f.err
}

func (f *fakeStore) CardPayments(_ context.Context, since time.Time) ([]domain.CardPaymentRow, error) {
	var out []domain.CardPaymentRow
	for _, p := range f.payments {
		if !p.Date.Before(since) {
			out = append(out, p)
		}
	}
	return out, f.err
}

// --- Helpers ---

// now — фиксированное "сейчас" для всех тестов: 15 июня 2024.
var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

var (
	amexID  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	debitID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	foodID  = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	fuelID  = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	giftID  = uuid.MustParse("55555555-5555-5555-5555-555555555555")
	groupID = uuid.MustParse("66666666-6666-6666-6666-666666666666")
)

func newService(store *fakeStore) *Service {
	return New(Config{
		Store:       store,
		IncomePayee: "ACME LTD",
		Now:         func() time.Time { return now },
	})
}

func ptr[T any](v T) *T { return &v }

func day(s string) domain.Date {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

type txOpt func(*domain.TransactionRow)

func credit() txOpt   { return func(r *domain.TransactionRow) { r.Debit = false } }
func transfer() txOpt { return func(r *domain.TransactionRow) { r.Transfer = true } }
func payee(name string) txOpt {
	return func(r *domain.TransactionRow) { r.Payee = ptr(name) }
}
func account(id uuid.UUID, name string) txOpt {
	return func(r *domain.TransactionRow) { r.AccountID, r.AccountName = id, name }
}
func categoryID(id uuid.UUID) txOpt {
	return func(r *domain.TransactionRow) { r.CategoryID = &id }
}

// tx создаёт списание в группе group и подкатегории sub.
func tx(id, date string, amount int64, group, sub string, opts ...txOpt) domain.TransactionRow {
	r := domain.TransactionRow{
		ID:          id,
		AccountID:   amexID,
		AccountName: "Amex",
		Amount:      amount,
		Date:        day(date),
		Debit:       true,
		GroupID:     &groupID,
	}
	if group != "" {
		r.Category = ptr(group)
	}
	if sub != "" {
		r.Subcategory = ptr(sub)
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

// --- Period ---

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		name    string
		year    string
		months  string
		month   string
		want    Period
		wantErr bool
	}{
		{"empty", "", "", "", Period{}, false},
		{"year", "2023", "", "", Period{Year: 2023}, false},
		{"year and month", "2023", "", "02", Period{Year: 2023, Month: 2}, false},
		{"months", "", "6", "", Period{Months: 6}, false},
		{"bad year", "23", "", "", Period{}, true},
		{"bad months", "", "4", "", Period{}, true},
		{"bad month", "", "", "13", Period{}, true},
		{"months with year", "2023", "3", "", Period{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePeriod(tt.year, tt.months, tt.month)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPeriod) {
					t.Errorf("expected ErrInvalidPeriod, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPeriod_Range(t *testing.T) {
	tests := []struct {
		name      string
		p         Period
		wantStart string
		wantEnd   string
	}{
		{"current month", Period{}, "2024-06-01", "2024-06-30"},
		{"year", Period{Year: 2023}, "2023-01-01", "2023-12-31"},
		{"year and month", Period{Year: 2023, Month: 2}, "2023-02-01", "2023-02-28"},
		{"month of this year", Period{Month: 3}, "2024-03-01", "2024-03-31"},
		{"last 3 months", Period{Months: 3}, "2024-04-01", "2024-06-30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.p.Range(now)
			if start.Format(domain.DateLayout) != tt.wantStart || end.Format(domain.DateLayout) != tt.wantEnd {
				t.Errorf("got %s..%s, want %s..%s", start.Format(domain.DateLayout), end.Format(domain.DateLayout), tt.wantStart, tt.wantEnd)
			}
			if end.Hour() != 23 || end.Minute() != 59 {
				t.Errorf("end should be the last second of the day, got %v", end)
			}
		})
	}
}

func TestMonthsBetween(t *testing.T) {
	start, end := Period{Year: 2023}.Range(now)
	if got := MonthsBetween(start, end); got != 12 {
		t.Errorf("expected 12 months for a year, got %d", got)
	}
	start, end = Period{}.Range(now)
	if got := MonthsBetween(start, end); got != 1 {
		t.Errorf("expected 1 month, got %d", got)
	}
}

// --- Budgets ---

func budgetStore() *fakeStore {
	return &fakeStore{
		categories: []domain.CategoryBudget{
			{CategoryID: foodID, GroupName: "Frequent", Name: "Groceries", Activity: -250000, Budget: ptr(300.0)},
			{CategoryID: fuelID, GroupName: "Frequent", Name: "Fuel", Activity: -120000, Budget: ptr(100.0)},
			{CategoryID: giftID, GroupName: "Giving", Name: "Gifts", Activity: -10000, Budget: ptr(50.0)},
			{CategoryID: uuid.New(), GroupName: "Giving", Name: "Charity"},
			{CategoryID: uuid.New(), GroupName: "Work", Name: "Lunch"},
			{CategoryID: uuid.New(), GroupName: "Work", Name: "Travel"},
			{CategoryID: uuid.New(), GroupName: "Monthly Bills", Name: "Rent"},
		},
	}
}

func TestBudgetsNeeded(t *testing.T) {
	svc := newService(budgetStore())

	got, err := svc.BudgetsNeeded(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Monthly Bills не требует бюджета
	if got.Count != 3 {
		t.Errorf("expected 3 categories, got %d", got.Count)
	}
	if len(got.Categories) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(got.Categories))
	}
	if got.Categories[0].Name != "Work" || got.Categories[0].Count != 2 {
		t.Errorf("expected Work with 2 first, got %+v", got.Categories[0])
	}
	if strings.Join(got.Categories[0].Subcategories, ",") != "Lunch,Travel" {
		t.Errorf("unexpected subcategories: %v", got.Categories[0].Subcategories)
	}
}

func TestBudgetsDashboard(t *testing.T) {
	svc := newService(budgetStore())

	got, err := svc.BudgetsDashboard(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Total != 450 {
		t.Errorf("expected total 450, got %v", got.Total)
	}
	if got.OnTrack != 2 || got.Overspent != 1 {
		t.Errorf("expected 2 on track / 1 overspent, got %d / %d", got.OnTrack, got.Overspent)
	}
	if got.Needed != 3 {
		t.Errorf("expected needed 3, got %d", got.Needed)
	}
	if len(got.Categories) != 2 || got.Categories[0].Name != "Frequent" {
		t.Fatalf("expected Frequent first, got %+v", got.Categories)
	}
	if got.Categories[0].Spent != 370000 {
		t.Errorf("expected Frequent spent 370000, got %d", got.Categories[0].Spent)
	}
	if got.Categories[0].Subcategories[1].OnTrack {
		t.Error("Fuel should be overspent")
	}
}

// --- Categories ---

func TestCategoriesSummary(t *testing.T) {
	store := budgetStore()
	store.rows = []domain.TransactionRow{
		tx("t1", "2024-05-03", 20000, "Frequent", "Groceries", categoryID(foodID)),
		tx("t2", "2024-06-03", 30000, "Frequent", "Groceries", categoryID(foodID)),
		tx("t3", "2024-06-04", 15000, "Frequent", "Fuel", categoryID(fuelID)),
		tx("t4", "2024-06-05", 90000, "Giving", "Gifts", categoryID(giftID)),
		tx("t5", "2024-06-06", 50000, "Monthly Bills", "Rent"),
		tx("t6", "2024-06-07", 70000, "", ""),
		tx("t7", "2024-06-08", 5000, "Frequent", "Groceries", categoryID(foodID), credit()),
	}
	svc := newService(store)

	got, err := svc.CategoriesSummary(context.Background(), Period{Months: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(got), got)
	}
	if got[0].Category != "Giving" || got[0].Amount != 90000 {
		t.Errorf("expected Giving 90000 first, got %s %d", got[0].Category, got[0].Amount)
	}
	frequent := got[1]
	if frequent.Amount != 65000 {
		t.Errorf("expected Frequent 65000, got %d", frequent.Amount)
	}
	// бюджеты умножаются на 3 месяца
	if frequent.Budgeted != 1200 {
		t.Errorf("expected Frequent budgeted 1200, got %v", frequent.Budgeted)
	}
	if frequent.Subcategories[0].Name != "Groceries" || frequent.Subcategories[0].Amount != 50000 {
		t.Errorf("unexpected first subcategory: %+v", frequent.Subcategories[0])
	}
	if frequent.ID == nil || *frequent.ID != groupID {
		t.Errorf("expected group id %s, got %v", groupID, frequent.ID)
	}
}

func TestCategorySummary_Trend(t *testing.T) {
	store := budgetStore()
	store.rows = []domain.TransactionRow{
		tx("jun", "2024-06-02", 60000, "Frequent", "Groceries"),
		tx("may", "2024-05-10", 30000, "Frequent", "Groceries"),
		tx("apr", "2024-04-10", 30000, "Frequent", "Groceries"),
		tx("mar", "2024-03-10", 30000, "Frequent", "Groceries"),
		tx("dec", "2023-12-10", 60000, "Frequent", "Groceries"),
		tx("other", "2024-06-02", 99000, "Frequent", "Fuel"),
	}
	svc := newService(store)

	got, err := svc.CategorySummary(context.Background(), "frequent", "groceries", Period{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Total != 60000 {
		t.Errorf("expected total 60000, got %d", got.Total)
	}
	if got.OnTrack == nil || !*got.OnTrack {
		t.Errorf("expected on track against 300 budget, got %v", got.OnTrack)
	}
	if got.Budget != 300 {
		t.Errorf("expected budget 300, got %v", got.Budget)
	}

	want := []Trend{
		{AvgSpend: 30000, Period: "Last month", Trend: "up", Percentage: 100},
		{AvgSpend: 30000, Period: "L3 months", Trend: "up", Percentage: 100},
		{AvgSpend: 25000, Period: "L6 months", Trend: "up", Percentage: 140},
	}
	for i, w := range want {
		if got.Trends.Summary[i] != w {
			t.Errorf("trend %d: got %+v, want %+v", i, got.Trends.Summary[i], w)
		}
	}

	if len(got.Trends.Data) != 6 {
		t.Fatalf("expected 6 months of data, got %d", len(got.Trends.Data))
	}
	if got.Trends.Data[0].Month != "2024-01" || got.Trends.Data[5].Month != "2024-06" {
		t.Errorf("data should run from 2024-01 to 2024-06, got %s..%s", got.Trends.Data[0].Month, got.Trends.Data[5].Month)
	}
}

func TestCategorySummary_NoBudget(t *testing.T) {
	store := budgetStore()
	store.rows = []domain.TransactionRow{tx("t1", "2024-06-02", 1000, "Work", "Lunch")}
	svc := newService(store)

	got, err := svc.CategorySummary(context.Background(), "Work", "Lunch", Period{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.OnTrack != nil {
		t.Errorf("on_track should be null without budget, got %v", *got.OnTrack)
	}
	// нет трат в прошлых месяцах — деление на ноль даёт flat
	if got.Trends.Summary[0].Trend != "flat" || got.Trends.Summary[0].Percentage != 0 {
		t.Errorf("expected flat trend, got %+v", got.Trends.Summary[0])
	}
}

func TestTrend_Down(t *testing.T) {
	got := trend(5000, 20000, 1)
	if got.Trend != "down" || got.Percentage != 75 {
		t.Errorf("expected down 75%%, got %+v", got)
	}
}

func TestCategoryPayees(t *testing.T) {
	store := &fakeStore{rows: []domain.TransactionRow{
		tx("t1", "2024-06-02", 1000, "Frequent", "Eating Out", payee("Cafe")),
		tx("t2", "2024-06-03", 4000, "Frequent", "Eating Out", payee("Bistro")),
		tx("t3", "2024-06-04", 2000, "Frequent", "Eating Out", payee("Cafe")),
		tx("t4", "2024-06-05", 9000, "Frequent", "Eating Out", payee("Transfer"), transfer()),
	}}
	svc := newService(store)

	got, err := svc.CategoryPayees(context.Background(), "Frequent", "Eating-Out", Period{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Count != 2 {
		t.Fatalf("expected 2 payees, got %d", got.Count)
	}
	if *got.TopSpender.PayeeName != "Bistro" || got.TopSpender.Total != 4000 {
		t.Errorf("unexpected top spender: %+v", got.TopSpender)
	}
	if got.Data[1].Count != 2 || got.Data[1].Total != 3000 {
		t.Errorf("unexpected Cafe totals: %+v", got.Data[1])
	}

	empty, err := svc.CategoryPayees(context.Background(), "Frequent", "Nothing", Period{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty.Count != 0 || empty.TopSpender != nil || empty.Data == nil {
		t.Errorf("expected empty summary, got %+v", empty)
	}
}

// --- Spend ---

func spendStore() *fakeStore {
	return &fakeStore{rows: []domain.TransactionRow{
		tx("a", "2024-06-01", 10000, "Frequent", "Groceries", account(amexID, "Amex")),
		tx("b", "2024-06-10", 40000, "Frequent", "Groceries", account(debitID, "Debit")),
		tx("c", "2024-06-14", 5000, "Work", "Lunch", account(amexID, "Amex")),
		tx("d", "2024-06-14", 7000, "Frequent", "Groceries", account(amexID, "Amex"), credit()),
		tx("bill", "2024-06-02", 800000, "Monthly Bills", "Rent"),
		tx("xfer", "2024-06-03", 100000, "Frequent", "Groceries", transfer()),
		tx("salary", "2024-05-28", 3000000, "Internal Master Category", "Inflow", credit(), payee("ACME LTD")),
		tx("may-bill", "2024-05-05", 750000, "Monthly Bills", "Rent"),
		tx("may-phone", "2024-05-06", 20000, "Monthly Bills", "Phone"),
	}}
}

func TestRefunds(t *testing.T) {
	svc := newService(spendStore())

	got, err := svc.Refunds(context.Background(), Period{}, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// зарплата не в группах расходов
	if got.Count != 1 || got.Total != 7000 {
		t.Errorf("expected 1 refund of 7000, got %d / %d", got.Count, got.Total)
	}
}

func TestTransactionSummary(t *testing.T) {
	svc := newService(spendStore())

	got, err := svc.TransactionSummary(context.Background(), Period{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.TransactionCount != 3 {
		t.Fatalf("expected 3 transactions, got %d", got.TransactionCount)
	}
	// 55000 потрачено, 7000 возвращено
	if got.Total != 48000 {
		t.Errorf("expected total 48000, got %d", got.Total)
	}
	if got.AveragePurchase != 55000.0/3 {
		t.Errorf("unexpected average %v", got.AveragePurchase)
	}
	if got.BiggestPurchase == nil || got.BiggestPurchase.ID != "b" {
		t.Errorf("expected biggest purchase b, got %+v", got.BiggestPurchase)
	}
	if len(got.Accounts) != 2 || got.Accounts[0].Name != "Debit" || got.Accounts[0].Balance != 40000 {
		t.Errorf("unexpected accounts: %+v", got.Accounts)
	}
	if got.Transactions[0].ID != "c" {
		t.Errorf("transactions should be newest first, got %s", got.Transactions[0].ID)
	}
}

func TestTransactionSummary_Empty(t *testing.T) {
	svc := newService(&fakeStore{})

	got, err := svc.TransactionSummary(context.Background(), Period{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AveragePurchase != 0 || got.BiggestPurchase != nil || got.Total != 0 {
		t.Errorf("expected zero summary, got %+v", got)
	}
}

func TestPayeeSummary(t *testing.T) {
	store := spendStore()
	store.rows = append(store.rows, tx("e", "2024-06-11", 2000, "Frequent", "Groceries", payee("Shop")))
	svc := newService(store)

	got, err := svc.PayeeSummary(context.Background(), Period{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// транзакции без получателя собираются в одну группу
	if got.Count != 2 || got.TopSpender.PayeeName != nil || got.TopSpender.Total != 55000 {
		t.Errorf("unexpected payees: %+v", got.Data)
	}
}

func TestDailySpend(t *testing.T) {
	svc := newService(spendStore())

	got, err := svc.DailySpend(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got.Days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(got.Days))
	}
	if got.Days[0].Date != "2024-06-13" || got.Days[2].Date != "2024-06-15" {
		t.Errorf("unexpected days %s..%s", got.Days[0].Date, got.Days[2].Date)
	}
	if got.Days[1].Total != 5000 || len(got.Days[1].Transactions) != 1 {
		t.Errorf("unexpected 2024-06-14: %+v", got.Days[1])
	}
	if got.Total != 5000 {
		t.Errorf("expected total 5000, got %d", got.Total)
	}
	if got.Days[0].Transactions == nil {
		t.Error("empty day should have an empty list")
	}
}

func TestDailySpend_InvalidDays(t *testing.T) {
	svc := newService(&fakeStore{})
	for _, n := range []int{0, 8} {
		if _, err := svc.DailySpend(context.Background(), n); !errors.Is(err, ErrInvalidPeriod) {
			t.Errorf("days=%d: expected ErrInvalidPeriod, got %v", n, err)
		}
	}
}

func TestMonthSummary(t *testing.T) {
	store := spendStore()
	store.categories = []domain.CategoryBudget{
		{CategoryID: foodID, GroupName: "Frequent", Name: "Groceries", Budget: ptr(400.0)},
	}
	store.savings = []domain.Saving{{Date: day("2024-06-01"), Name: "Monthly", Target: 500}}
	store.uncategorised = 2
	svc := newService(store)

	got, err := svc.MonthSummary(context.Background(), Period{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// траты 55000 − возврат 7000
	if got.Summary.BalanceSpent != 48000 {
		t.Errorf("expected spent 48000, got %d", got.Summary.BalanceSpent)
	}
	// счета прошлого месяца: 750 + 20
	if got.IncomeExpenses.Bills != 770000 {
		t.Errorf("expected bills 770000, got %d", got.IncomeExpenses.Bills)
	}
	if got.IncomeExpenses.Income != 3000000 {
		t.Errorf("expected income 3000000, got %d", got.IncomeExpenses.Income)
	}
	if got.IncomeExpenses.Savings != 500000 {
		t.Errorf("expected savings 500000, got %d", got.IncomeExpenses.Savings)
	}
	wantAvailable := int64(3000000 - (48000 + 770000) - 500000)
	if got.Summary.BalanceAvailable != wantAvailable {
		t.Errorf("expected available %d, got %d", wantAvailable, got.Summary.BalanceAvailable)
	}
	if got.Summary.BalanceBudget != 400 {
		t.Errorf("expected budget 400, got %v", got.Summary.BalanceBudget)
	}
	if got.Summary.DaysLeft != 15 {
		t.Errorf("expected 15 days left, got %d", got.Summary.DaysLeft)
	}
	if got.Summary.DailySpend != float64(wantAvailable)/15 {
		t.Errorf("unexpected daily spend %v", got.Summary.DailySpend)
	}
	if got.Notif == nil || *got.Notif != "2 uncategorised transactions" {
		t.Errorf("unexpected notification %v", got.Notif)
	}
}

func TestMonthSummary_PastMonth(t *testing.T) {
	svc := newService(spendStore())

	got, err := svc.MonthSummary(context.Background(), Period{Month: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Summary.DaysLeft != 0 {
		t.Errorf("past month should have no days left, got %d", got.Summary.DaysLeft)
	}
	if got.Notif != nil {
		t.Errorf("expected no notification, got %s", *got.Notif)
	}
}

func TestUncategorisedNotice(t *testing.T) {
	if n := uncategorisedNotice(1); n == nil || *n != "1 uncategorised transaction" {
		t.Errorf("unexpected singular notice: %v", n)
	}
	if uncategorisedNotice(0) != nil {
		t.Error("expected nil notice for zero")
	}
}

// --- Loans and bills ---

func loanStore() *fakeStore {
	return &fakeStore{
		loans: []domain.LoanRenewal{
			{
				Name: "Car", Type: domain.LoanRenewalLoan, Period: domain.PeriodMonthly,
				PaymentAmount: 100, StartingBalance: 1200,
				StartDate: day("2024-01-10"), EndDate: ptr(day("2024-12-10")),
			},
			{
				Name: "Old", Type: domain.LoanRenewalLoan, Period: domain.PeriodMonthly,
				PaymentAmount: 50, StartingBalance: 500,
				StartDate: day("2022-01-10"), EndDate: ptr(day("2023-01-10")),
			},
			{
				Name: "Music", Type: domain.LoanRenewalSubscription, Period: domain.PeriodMonthly,
				PaymentAmount: 10, StartDate: day("2023-03-01"),
			},
			{
				Name: "Domain", Type: domain.LoanRenewalSubscription, Period: domain.PeriodYearly,
				PaymentAmount: 15, StartDate: day("2023-09-01"),
			},
			{
				Name: "Home", Type: domain.LoanRenewalInsurance, Period: domain.PeriodYearly,
				PaymentAmount: 300, StartDate: day("2023-06-20"), EndDate: ptr(day("2025-06-20")),
			},
			{
				Name: "Pet", Type: domain.LoanRenewalInsurance, Period: domain.PeriodMonthly,
				PaymentAmount: 20, StartDate: day("2023-01-01"), EndDate: ptr(day("2024-10-01")),
			},
			{
				Name: "Gym", Type: domain.LoanRenewalSubscription, Period: domain.PeriodMonthly,
				PaymentAmount: 30, StartDate: day("2022-01-01"), Closed: true,
			},
		},
		accounts: []domain.Account{
			{ID: amexID, Name: "Amex", Type: domain.AccountTypeCreditCard, Balance: -150000},
			{ID: debitID, Name: "Debit", Type: "checking", Balance: 900000},
		},
	}
}

func TestRemainingBalance(t *testing.T) {
	loan := domain.LoanRenewal{PaymentAmount: 100, StartingBalance: 1200, StartDate: day("2024-01-10"), Period: domain.PeriodMonthly}

	if got := RemainingBalance(loan, now); got != 700 {
		t.Errorf("expected 700 after 5 months, got %v", got)
	}
	if got := RemainingBalance(loan, now.AddDate(3, 0, 0)); got != 0 {
		t.Errorf("expected balance clamped at 0, got %v", got)
	}
}

func TestInsurance(t *testing.T) {
	svc := newService(loanStore())

	got, err := svc.Insurance(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Pet" || got[1].Name != "Home" {
		t.Errorf("expected Pet then Home, got %+v", got)
	}
}

func TestLoanPortfolio(t *testing.T) {
	svc := newService(loanStore())

	got, err := svc.LoanPortfolio(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Count != 1 {
		t.Fatalf("expected only the active loan, got %d", got.Count)
	}
	if got.TotalCredit != 700 {
		t.Errorf("expected total credit 700, got %v", got.TotalCredit)
	}
	// с июня до декабря — 6 месяцев
	if len(got.Accounts) != 6 {
		t.Fatalf("expected 6 months, got %d", len(got.Accounts))
	}
	if got.Accounts[0]["Car"] != 600.0 || got.Accounts[5]["Car"] != 100.0 {
		t.Errorf("unexpected projection: %v .. %v", got.Accounts[0], got.Accounts[5])
	}
	if d, ok := got.Accounts[0]["date"].(domain.Date); !ok || d.String() != "2024-06-01" {
		t.Errorf("unexpected first date: %v", got.Accounts[0]["date"])
	}
}

func TestLoansRenewalsOverview(t *testing.T) {
	svc := newService(loanStore())

	got, err := svc.LoansRenewalsOverview(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Counts.Loans != 2 || got.Counts.Subscriptions != 2 || got.Counts.Insurance != 2 {
		t.Errorf("unexpected counts: %+v", got.Counts)
	}
	if got.Loans.Debt != 1700 {
		t.Errorf("expected debt 1700, got %v", got.Loans.Debt)
	}
	if got.Loans.RemainingBalance != 700 {
		t.Errorf("expected remaining 700, got %v", got.Loans.RemainingBalance)
	}
	if got.Subscriptions.TotalsMonthly != 10 || got.Subscriptions.TotalsYearly != 15 {
		t.Errorf("unexpected subscription totals: %v / %v", got.Subscriptions.TotalsMonthly, got.Subscriptions.TotalsYearly)
	}
	if got.Credit.Total != -150000 {
		t.Errorf("expected credit -150000, got %d", got.Credit.Total)
	}
	if len(got.Totals.Data) != 5 {
		t.Errorf("expected 5 type/period groups, got %+v", got.Totals.Data)
	}
}

func TestUpcomingBills(t *testing.T) {
	store := loanStore()
	store.rows = spendStore().rows
	svc := newService(store)

	got, err := svc.UpcomingBills(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.CountBills != 2 || len(got.Bills) != 2 {
		t.Fatalf("expected 2 bills from May, got %+v", got.Bills)
	}
	if got.Bills[0].Name != "Rent" || got.Bills[0].Amount != 750000 {
		t.Errorf("unexpected first bill: %+v", got.Bills[0])
	}
	if got.TotalBills != 770 {
		t.Errorf("expected bills 770, got %v", got.TotalBills)
	}
	// Car (кредит), Music, Home (ежегодно в июне), Pet
	if len(got.Loans) != 1 || got.TotalLoans != 100 {
		t.Errorf("unexpected loans: %+v", got.Loans)
	}
	if len(got.Renewals) != 3 || got.TotalRenewals != 330 {
		t.Errorf("unexpected renewals: %+v", got.Renewals)
	}
	if got.Total != 1200 {
		t.Errorf("expected total 1200, got %v", got.Total)
	}
}

func TestPastBills(t *testing.T) {
	store := loanStore()
	store.payments = []domain.CardPaymentRow{
		{AccountName: "Amex", Date: day("2024-03-05"), Amount: 100000},
		{AccountName: "Amex", Date: day("2024-04-05"), Amount: 150000},
		{AccountName: "Barclays", Date: day("2024-04-20"), Amount: 50000},
		{AccountName: "Amex", Date: day("2024-05-05"), Amount: 100000},
		{AccountName: "Amex", Date: day("2024-06-05"), Amount: 999000},
	}
	svc := newService(store)

	got, err := svc.PastBills(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got.Data) != 3 {
		t.Fatalf("expected 3 past months, got %d", len(got.Data))
	}
	if got.Data[0].Date.String() != "2024-03-01" || got.Data[2].Date.String() != "2024-05-01" {
		t.Errorf("unexpected months %s..%s", got.Data[0].Date, got.Data[2].Date)
	}
	if got.Data[1].Total != 200000 || got.Data[1].Cards["Barclays"] != 50000 {
		t.Errorf("unexpected April: %+v", got.Data[1])
	}
	if got.Data[0].Cards["Barclays"] != 0 {
		t.Error("cards without payments should be zero")
	}
	// +100% затем −50%
	if got.Summary.AvgTrend != 25 || got.Summary.LastMonthTrend != -50 {
		t.Errorf("unexpected trends: %+v", got.Summary)
	}
	if got.Summary.LastMonthDiff != -100000 {
		t.Errorf("expected diff -100000, got %d", got.Summary.LastMonthDiff)
	}

	out, err := json.Marshal(got.Data[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"Amex":100000`) || !strings.Contains(string(out), `"date":"2024-03-01"`) {
		t.Errorf("unexpected json: %s", out)
	}
}

func TestSavings(t *testing.T) {
	store := &fakeStore{savings: []domain.Saving{
		{Date: day("2023-12-01"), Name: "Monthly"},
		{Date: day("2024-01-01"), Name: "Monthly"},
		{Date: day("2024-12-01"), Name: "Monthly"},
	}}
	svc := newService(store)

	got, err := svc.Savings(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 savings in 2024, got %d", len(got))
	}
}

func TestStoreError(t *testing.T) {
	boom := errors.New("boom")
	svc := newService(&fakeStore{err: boom})

	if _, err := svc.MonthSummary(context.Background(), Period{}); !errors.Is(err, boom) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}
