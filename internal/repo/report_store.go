package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/ynab-portal/internal/domain"
)

// ReportStore — выборки для отчётов. Агрегация выполняется в пакете reports.
type ReportStore struct {
	pool *pgxpool.Pool
}

// NewReportStore создаёт новый ReportStore.
func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

// Transactions возвращает транзакции по фильтру, от новых к старым.
func (s *ReportStore) Transactions(ctx context.Context, f domain.TxFilter) ([]domain.TransactionRow, error) {
	where, args := txWhere(f)

	join := "LEFT JOIN"
	if f.NeedsCategory() {
		join = "JOIN"
	}
	query := fmt.Sprintf(`
		SELECT t.id, t.account_id, t.amount, t.account_name, t.date, c.category_group_name,
		       t.category_name, t.payee_name, t.memo, t.category_id, c.category_group_id,
		       t.debit, t.transfer_account_id IS NOT NULL
		FROM ynab_transactions t
		%s ynab_categories c ON c.id = t.category_fk
		WHERE %s
		ORDER BY t.date DESC, t.amount DESC, t.id
	`, join, where)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var result []domain.TransactionRow
	for rows.Next() {
		var r domain.TransactionRow
		if err := rows.Scan(&r.ID, &r.AccountID, &r.Amount, &r.AccountName, &r.Date, &r.Category,
			&r.Subcategory, &r.Payee, &r.Memo, &r.CategoryID, &r.GroupID, &r.Debit, &r.Transfer); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// CountUncategorised возвращает число транзакций без связанной категории (без переводов).
func (s *ReportStore) CountUncategorised(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM ynab_transactions
		WHERE category_fk IS NULL AND transfer_account_id IS NULL AND NOT deleted
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count uncategorised: %w", err)
	}
	return n, nil
}

// CategoryBudgets возвращает неудалённые категории вместе с бюджетами.
func (s *ReportStore) CategoryBudgets(ctx context.Context) ([]domain.CategoryBudget, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.category_group_id, c.category_group_name, c.name, c.activity, b.amount
		FROM ynab_categories c
		LEFT JOIN budgets b ON b.category_id = c.id
		WHERE NOT c.deleted
		ORDER BY c.category_group_name, c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("query category budgets: %w", err)
	}
	defer rows.Close()

	var result []domain.CategoryBudget
	for rows.Next() {
		var cb domain.CategoryBudget
		if err := rows.Scan(&cb.CategoryID, &cb.GroupID, &cb.GroupName, &cb.Name, &cb.Activity, &cb.Budget); err != nil {
			return nil, fmt.Errorf("scan category budget: %w", err)
		}
		result = append(result, cb)
	}
	return result, rows.Err()
}

// LoanRenewals возвращает все обязательства с именами типа и периода по start_date.
func (s *ReportStore) LoanRenewals(ctx context.Context) ([]domain.LoanRenewal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT l.id, l.name, l.type_id, t.name, l.period_id, p.name, l.payment_amount,
		       l.start_date, l.end_date, l.provider, l.notes, l.closed, l.starting_balance
		FROM loans_and_renewals l
		JOIN loans_and_renewals_types t ON t.id = l.type_id
		JOIN loans_and_renewals_periods p ON p.id = l.period_id
		ORDER BY l.start_date, l.name
	`)
	if err != nil {
		return nil, fmt.Errorf("query loans and renewals: %w", err)
	}
	defer rows.Close()

	var result []domain.LoanRenewal
	for rows.Next() {
		var l domain.LoanRenewal
		if err := rows.Scan(&l.ID, &l.Name, &l.TypeID, &l.Type, &l.PeriodID, &l.Period, &l.PaymentAmount,
			&l.StartDate, &l.EndDate, &l.Provider, &l.Notes, &l.Closed, &l.StartingBalance); err != nil {
			return nil, fmt.Errorf("scan loan renewal: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

// Accounts возвращает неудалённые счета по имени.
func (s *ReportStore) Accounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, type, closed, balance
		FROM ynab_accounts
		WHERE NOT deleted
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var result []domain.Account
	for rows.Next() {
		var a domain.Account
		var accountType *string
		if err := rows.Scan(&a.ID, &a.Name, &accountType, &a.Closed, &a.Balance); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		if accountType != nil {
			a.Type = *accountType
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// Savings возвращает записи накоплений в интервале [from, to] по дате.
func (s *ReportStore) Savings(ctx context.Context, from, to time.Time) ([]domain.Saving, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, date, name, amount, target
		FROM savings
		WHERE date >= $1 AND date <= $2
		ORDER BY date, name
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query savings: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Saving, error) {
		var sv domain.Saving
		err := row.Scan(&sv.ID, &sv.Date, &sv.Name, &sv.Amount, &sv.Target)
		return sv, err
	})
}

// CardPayments возвращает оплаты кредитных карт начиная с since.
func (s *ReportStore) CardPayments(ctx context.Context, since time.Time) ([]domain.CardPaymentRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.name, t.date, t.amount
		FROM card_payments cp
		JOIN ynab_accounts a ON a.id = cp.account_id
		JOIN ynab_transactions t ON t.id = cp.transaction_id
		WHERE t.date >= $1 AND NOT t.deleted
		ORDER BY t.date, a.name
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query card payments: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CardPaymentRow, error) {
		var cp domain.CardPaymentRow
		err := row.Scan(&cp.AccountName, &cp.Date, &cp.Amount)
		return cp, err
	})
}

// txWhere переводит фильтр в условие SQL. Логика совпадает с TxFilter.Match.
func txWhere(f domain.TxFilter) (string, []any) {
	conds := []string{"NOT t.deleted"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.From.IsZero() {
		conds = append(conds, "t.date >= "+arg(domain.NewDate(f.From).Time))
	}
	if !f.To.IsZero() {
		conds = append(conds, "t.date <= "+arg(f.To))
	}
	if f.Debit != nil {
		conds = append(conds, "t.debit = "+arg(*f.Debit))
	}
	if f.ExcludeTransfers {
		conds = append(conds, "t.transfer_account_id IS NULL")
	}
	if len(f.GroupsIn) > 0 {
		conds = append(conds, "c.category_group_name = ANY("+arg(f.GroupsIn)+")")
	}
	if len(f.GroupsNotIn) > 0 {
		conds = append(conds, "NOT (c.category_group_name = ANY("+arg(f.GroupsNotIn)+"))")
	}
	if f.Group != "" {
		conds = append(conds, "lower(c.category_group_name) = lower("+arg(f.Group)+")")
	}
	if f.Subcategory != "" {
		conds = append(conds, "lower(t.category_name) = lower("+arg(f.Subcategory)+")")
	}
	if f.Payee != "" {
		conds = append(conds, "t.payee_name = "+arg(f.Payee))
	}
	return strings.Join(conds, " AND "), args
}
