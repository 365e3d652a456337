package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/ynab-portal/internal/domain"
)

// UpsertStats — итог пакетной вставки/обновления.
type UpsertStats struct {
	Created int
	Updated int
}

func (s *UpsertStats) add(inserted bool) {
	if inserted {
		s.Created++
	} else {
		s.Updated++
	}
}

// SyncStore — запись данных, полученных из YNAB.
type SyncStore struct {
	pool *pgxpool.Pool
}

// NewSyncStore создаёт новый SyncStore.
func NewSyncStore(pool *pgxpool.Pool) *SyncStore {
	return &SyncStore{pool: pool}
}

// --- Server knowledge ---

// GetServerKnowledge возвращает состояние delta-синхронизации маршрута.
func (s *SyncStore) GetServerKnowledge(ctx context.Context, route string) (*domain.ServerKnowledge, error) {
	var sk domain.ServerKnowledge
	err := s.pool.QueryRow(ctx, `
		SELECT id, budget_id, route, server_knowledge, last_updated
		FROM ynab_server_knowledge
		WHERE route = $1
	`, route).Scan(&sk.ID, &sk.BudgetID, &sk.Route, &sk.ServerKnowledge, &sk.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get server knowledge: %w", err)
	}
	return &sk, nil
}

// SaveServerKnowledge создаёт или обновляет состояние маршрута, last_updated = now.
func (s *SyncStore) SaveServerKnowledge(ctx context.Context, budgetID, route string, knowledge int64, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ynab_server_knowledge (id, budget_id, route, server_knowledge, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (route) DO UPDATE
		SET budget_id = EXCLUDED.budget_id,
		    server_knowledge = EXCLUDED.server_knowledge,
		    last_updated = EXCLUDED.last_updated
	`, uuid.New(), budgetID, route, knowledge, now)
	if err != nil {
		return fmt.Errorf("save server knowledge: %w", err)
	}
	return nil
}

// --- Entities ---

// UpsertAccounts сохраняет счета.
func (s *SyncStore) UpsertAccounts(ctx context.Context, accounts []domain.Account) (UpsertStats, error) {
	const query = `
		INSERT INTO ynab_accounts (id, name, type, on_budget, closed, note, balance, cleared_balance,
		    uncleared_balance, transfer_payee_id, direct_import_linked, direct_import_in_error,
		    last_reconciled_at, debt_original_balance, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, type = EXCLUDED.type, on_budget = EXCLUDED.on_budget,
		    closed = EXCLUDED.closed, note = EXCLUDED.note, balance = EXCLUDED.balance,
		    cleared_balance = EXCLUDED.cleared_balance, uncleared_balance = EXCLUDED.uncleared_balance,
		    transfer_payee_id = EXCLUDED.transfer_payee_id,
		    direct_import_linked = EXCLUDED.direct_import_linked,
		    direct_import_in_error = EXCLUDED.direct_import_in_error,
		    last_reconciled_at = EXCLUDED.last_reconciled_at,
		    debt_original_balance = EXCLUDED.debt_original_balance, deleted = EXCLUDED.deleted
		RETURNING (xmax = 0)
	`
	return s.upsert(ctx, "accounts", len(accounts), func(tx pgx.Tx, i int) (bool, error) {
		a := accounts[i]
		var inserted bool
		err := tx.QueryRow(ctx, query,
			a.ID, a.Name, a.Type, a.OnBudget, a.Closed, a.Note, a.Balance, a.ClearedBalance,
			a.UnclearedBalance, nullUUID(a.TransferPayeeID), a.DirectImportLinked, a.DirectImportInError,
			a.LastReconciledAt, a.DebtOriginalBalance, a.Deleted,
		).Scan(&inserted)
		return inserted, err
	})
}

// UpsertCategories сохраняет категории.
func (s *SyncStore) UpsertCategories(ctx context.Context, categories []domain.Category) (UpsertStats, error) {
	const query = `
		INSERT INTO ynab_categories (id, category_group_id, category_group_name, name, hidden,
		    original_category_group_id, note, budgeted, activity, balance, goal_type, goal_day,
		    goal_cadence, goal_cadence_frequency, goal_creation_month, goal_target, goal_target_month,
		    goal_percentage_complete, goal_months_to_budget, goal_under_funded, goal_overall_funded,
		    goal_overall_left, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		        $19, $20, $21, $22, $23)
		ON CONFLICT (id) DO UPDATE
		SET category_group_id = EXCLUDED.category_group_id,
		    category_group_name = EXCLUDED.category_group_name, name = EXCLUDED.name,
		    hidden = EXCLUDED.hidden, original_category_group_id = EXCLUDED.original_category_group_id,
		    note = EXCLUDED.note, budgeted = EXCLUDED.budgeted, activity = EXCLUDED.activity,
		    balance = EXCLUDED.balance, goal_type = EXCLUDED.goal_type, goal_day = EXCLUDED.goal_day,
		    goal_cadence = EXCLUDED.goal_cadence,
		    goal_cadence_frequency = EXCLUDED.goal_cadence_frequency,
		    goal_creation_month = EXCLUDED.goal_creation_month, goal_target = EXCLUDED.goal_target,
		    goal_target_month = EXCLUDED.goal_target_month,
		    goal_percentage_complete = EXCLUDED.goal_percentage_complete,
		    goal_months_to_budget = EXCLUDED.goal_months_to_budget,
		    goal_under_funded = EXCLUDED.goal_under_funded,
		    goal_overall_funded = EXCLUDED.goal_overall_funded,
		    goal_overall_left = EXCLUDED.goal_overall_left, deleted = EXCLUDED.deleted
		RETURNING (xmax = 0)
	`
	return s.upsert(ctx, "categories", len(categories), func(tx pgx.Tx, i int) (bool, error) {
		c := categories[i]
		var inserted bool
		err := tx.QueryRow(ctx, query,
			c.ID, c.CategoryGroupID, c.CategoryGroupName, c.Name, c.Hidden,
			nullUUID(c.OriginalCategoryGroupID), c.Note, c.Budgeted, c.Activity, c.Balance, c.GoalType,
			c.GoalDay, c.GoalCadence, c.GoalCadenceFrequency, c.GoalCreationMonth, c.GoalTarget,
			c.GoalTargetMonth, c.GoalPercentageComplete, c.GoalMonthsToBudget, c.GoalUnderFunded,
			c.GoalOverallFunded, c.GoalOverallLeft, c.Deleted,
		).Scan(&inserted)
		return inserted, err
	})
}

// UpsertPayees сохраняет получателей.
func (s *SyncStore) UpsertPayees(ctx context.Context, payees []domain.Payee) (UpsertStats, error) {
	const query = `
		INSERT INTO ynab_payees (id, name, transfer_account_id, deleted)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, transfer_account_id = EXCLUDED.transfer_account_id,
		    deleted = EXCLUDED.deleted
		RETURNING (xmax = 0)
	`
	return s.upsert(ctx, "payees", len(payees), func(tx pgx.Tx, i int) (bool, error) {
		p := payees[i]
		var inserted bool
		err := tx.QueryRow(ctx, query, p.ID, p.Name, nullUUID(p.TransferAccountID), p.Deleted).Scan(&inserted)
		return inserted, err
	})
}

// UpsertMonthSummaries сохраняет сводки месяцев. Ключ — месяц, YNAB не отдаёт id.
func (s *SyncStore) UpsertMonthSummaries(ctx context.Context, months []domain.MonthSummary) (UpsertStats, error) {
	const query = `
		INSERT INTO ynab_month_summaries (id, month, note, income, budgeted, activity,
		    to_be_budgeted, age_of_money, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (month) DO UPDATE
		SET note = EXCLUDED.note, income = EXCLUDED.income, budgeted = EXCLUDED.budgeted,
		    activity = EXCLUDED.activity, to_be_budgeted = EXCLUDED.to_be_budgeted,
		    age_of_money = EXCLUDED.age_of_money, deleted = EXCLUDED.deleted
		RETURNING (xmax = 0)
	`
	return s.upsert(ctx, "month summaries", len(months), func(tx pgx.Tx, i int) (bool, error) {
		m := months[i]
		id := m.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		var inserted bool
		err := tx.QueryRow(ctx, query,
			id, m.Month, m.Note, m.Income, m.Budgeted, m.Activity, m.ToBeBudgeted, m.AgeOfMoney, m.Deleted,
		).Scan(&inserted)
		return inserted, err
	})
}

// UpsertTransactions сохраняет транзакции. category_fk не трогается при обновлении,
// если категория не изменилась.
func (s *SyncStore) UpsertTransactions(ctx context.Context, txs []domain.Transaction) (UpsertStats, error) {
	const query = `
		INSERT INTO ynab_transactions (id, date, amount, debit, memo, cleared, approved, flag_color,
		    flag_name, account_id, account_name, payee_id, payee_name, category_id, category_name,
		    transfer_account_id, transfer_transaction_id, matched_transaction_id, import_id,
		    import_payee_name, import_payee_name_original, debt_transaction_type, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		        $19, $20, $21, $22, $23)
		ON CONFLICT (id) DO UPDATE
		SET date = EXCLUDED.date, amount = EXCLUDED.amount, debit = EXCLUDED.debit,
		    memo = EXCLUDED.memo, cleared = EXCLUDED.cleared, approved = EXCLUDED.approved,
		    flag_color = EXCLUDED.flag_color, flag_name = EXCLUDED.flag_name,
		    account_id = EXCLUDED.account_id, account_name = EXCLUDED.account_name,
		    payee_id = EXCLUDED.payee_id, payee_name = EXCLUDED.payee_name,
		    category_fk = CASE WHEN ynab_transactions.category_id IS DISTINCT FROM EXCLUDED.category_id
		                       THEN NULL ELSE ynab_transactions.category_fk END,
		    category_id = EXCLUDED.category_id, category_name = EXCLUDED.category_name,
		    transfer_account_id = EXCLUDED.transfer_account_id,
		    transfer_transaction_id = EXCLUDED.transfer_transaction_id,
		    matched_transaction_id = EXCLUDED.matched_transaction_id,
		    import_id = EXCLUDED.import_id, import_payee_name = EXCLUDED.import_payee_name,
		    import_payee_name_original = EXCLUDED.import_payee_name_original,
		    debt_transaction_type = EXCLUDED.debt_transaction_type, deleted = EXCLUDED.deleted
		RETURNING (xmax = 0)
	`
	return s.upsert(ctx, "transactions", len(txs), func(tx pgx.Tx, i int) (bool, error) {
		t := txs[i]
		var inserted bool
		err := tx.QueryRow(ctx, query,
			t.ID, t.Date, t.Amount, t.Debit, t.Memo, t.Cleared, t.Approved, t.FlagColor,
			t.FlagName, t.AccountID, t.AccountName, nullUUID(t.PayeeID), t.PayeeName,
			nullUUID(t.CategoryID), t.CategoryName, nullUUID(t.TransferAccountID),
			t.TransferTransactionID, t.MatchedTransactionID, t.ImportID, t.ImportPayeeName,
			t.ImportPayeeNameOriginal, t.DebtTransactionType, t.Deleted,
		).Scan(&inserted)
		return inserted, err
	})
}

// upsert выполняет fn для каждого элемента в одной транзакции.
func (s *SyncStore) upsert(ctx context.Context, what string, n int, fn func(tx pgx.Tx, i int) (bool, error)) (UpsertStats, error) {
	var stats UpsertStats
	if n == 0 {
		return stats, nil
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for i := 0; i < n; i++ {
			inserted, err := fn(tx, i)
			if err != nil {
				return fmt.Errorf("upsert %s #%d: %w", what, i, classify(err))
			}
			stats.add(inserted)
		}
		return nil
	})
	if err != nil {
		return UpsertStats{}, err
	}
	return stats, nil
}

// --- Month details ---

// MonthSummaryByMonth возвращает сводку месяца по его первому дню.
func (s *SyncStore) MonthSummaryByMonth(ctx context.Context, month time.Time) (*domain.MonthSummary, error) {
	var m domain.MonthSummary
	err := s.pool.QueryRow(ctx, `
		SELECT id, month, note, income, budgeted, activity, to_be_budgeted, age_of_money, deleted
		FROM ynab_month_summaries
		WHERE month = $1
	`, domain.NewDate(month)).Scan(
		&m.ID, &m.Month, &m.Note, &m.Income, &m.Budgeted, &m.Activity, &m.ToBeBudgeted,
		&m.AgeOfMoney, &m.Deleted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get month summary: %w", err)
	}
	return &m, nil
}

// CountMonthCategories возвращает количество сохранённых категорий месяца.
func (s *SyncStore) CountMonthCategories(ctx context.Context, monthSummaryID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM ynab_month_detail_categories WHERE month_summary_id = $1`,
		monthSummaryID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count month categories: %w", err)
	}
	return n, nil
}

// UpsertMonthCategories сохраняет категории месяца, привязанные к сводке.
func (s *SyncStore) UpsertMonthCategories(ctx context.Context, monthSummaryID uuid.UUID, cats []domain.MonthCategory) (UpsertStats, error) {
	const query = `
		INSERT INTO ynab_month_detail_categories (id, month_summary_id, category_id, category_group_id,
		    category_group_name, name, hidden, budgeted, activity, balance, goal_type, goal_target, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (month_summary_id, category_id) DO UPDATE
		SET category_group_id = EXCLUDED.category_group_id,
		    category_group_name = EXCLUDED.category_group_name, name = EXCLUDED.name,
		    hidden = EXCLUDED.hidden, budgeted = EXCLUDED.budgeted, activity = EXCLUDED.activity,
		    balance = EXCLUDED.balance, goal_type = EXCLUDED.goal_type,
		    goal_target = EXCLUDED.goal_target, deleted = EXCLUDED.deleted
		RETURNING (xmax = 0)
	`
	return s.upsert(ctx, "month categories", len(cats), func(tx pgx.Tx, i int) (bool, error) {
		c := cats[i]
		var inserted bool
		err := tx.QueryRow(ctx, query,
			uuid.New(), monthSummaryID, c.CategoryID, c.CategoryGroupID, c.CategoryGroupName, c.Name,
			c.Hidden, c.Budgeted, c.Activity, c.Balance, c.GoalType, c.GoalTarget, c.Deleted,
		).Scan(&inserted)
		return inserted, err
	})
}

// --- Transaction relations ---

// UnlinkedTransaction — транзакция без category_fk.
type UnlinkedTransaction struct {
	ID                string
	CategoryID        *uuid.UUID
	TransferAccountID *uuid.UUID
}

// ListUnlinkedTransactions возвращает транзакции без category_fk.
func (s *SyncStore) ListUnlinkedTransactions(ctx context.Context) ([]UnlinkedTransaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, category_id, transfer_account_id
		FROM ynab_transactions
		WHERE category_fk IS NULL
		ORDER BY date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list unlinked transactions: %w", err)
	}
	defer rows.Close()

	var out []UnlinkedTransaction
	for rows.Next() {
		var t UnlinkedTransaction
		if err := rows.Scan(&t.ID, &t.CategoryID, &t.TransferAccountID); err != nil {
			return nil, fmt.Errorf("scan unlinked transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LinkTransactionCategories проставляет category_fk там, где категория известна.
// Возвращает количество связанных транзакций.
func (s *SyncStore) LinkTransactionCategories(ctx context.Context) (int64, error) {
	res, err := s.pool.Exec(ctx, `
		UPDATE ynab_transactions t
		SET category_fk = c.id
		FROM ynab_categories c
		WHERE t.category_fk IS NULL AND t.category_id = c.id
	`)
	if err != nil {
		return 0, fmt.Errorf("link transaction categories: %w", err)
	}
	return res.RowsAffected(), nil
}

// --- Card payments ---

// LinkCardPayments регистрирует переводы на счета кредитных карт как оплаты карт.
func (s *SyncStore) LinkCardPayments(ctx context.Context) (int64, error) {
	res, err := s.pool.Exec(ctx, `
		INSERT INTO card_payments (id, account_id, transaction_id)
		SELECT gen_random_uuid(), a.id, t.id
		FROM ynab_transactions t
		JOIN ynab_accounts a ON a.id = t.transfer_account_id
		WHERE a.type = $1
		  AND t.debit = true
		  AND t.deleted = false
		ON CONFLICT (transaction_id) DO NOTHING
	`, domain.AccountTypeCreditCard)
	if err != nil {
		return 0, fmt.Errorf("link card payments: %w", err)
	}
	return res.RowsAffected(), nil
}

// --- Savings ---

// FindSaving возвращает запись накоплений с именем name за месяц month.
func (s *SyncStore) FindSaving(ctx context.Context, name string, month time.Time) (*domain.Saving, error) {
	var sv domain.Saving
	err := s.pool.QueryRow(ctx, `
		SELECT id, date, name, amount, target
		FROM savings
		WHERE name = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
		LIMIT 1
	`, name, domain.MonthStart(month), domain.MonthEnd(month)).Scan(
		&sv.ID, &sv.Date, &sv.Name, &sv.Amount, &sv.Target,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find saving: %w", err)
	}
	return &sv, nil
}

// SetSavingAmount обновляет фактическую сумму накоплений.
func (s *SyncStore) SetSavingAmount(ctx context.Context, id uuid.UUID, amount float64) error {
	res, err := s.pool.Exec(ctx, `UPDATE savings SET amount = $2 WHERE id = $1`, id, amount)
	if err != nil {
		return fmt.Errorf("set saving amount: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MonthCashFlow возвращает доход и расходы за месяц в milliunits, без переводов.
func (s *SyncStore) MonthCashFlow(ctx context.Context, month time.Time) (income, spent int64, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount) FILTER (WHERE NOT debit), 0),
		       COALESCE(SUM(amount) FILTER (WHERE debit), 0)
		FROM ynab_transactions
		WHERE date >= $1 AND date <= $2
		  AND transfer_account_id IS NULL
		  AND deleted = false
	`, domain.MonthStart(month), domain.MonthEnd(month)).Scan(&income, &spent)
	if err != nil {
		return 0, 0, fmt.Errorf("month cash flow: %w", err)
	}
	return income, spent, nil
}
