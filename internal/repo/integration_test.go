package repo

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/ynab-portal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres поднимает PostgreSQL в контейнере и применяет миграции.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if runtime.GOOS != "linux" {
		t.Skip("PostgreSQL container requires linux")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "ynab",
				"POSTGRES_PASSWORD": "ynab",
				"POSTGRES_DB":       "ynab",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgresql://ynab:ynab@%s:%s/ynab?sslmode=disable", host, port.Port())
	require.NoError(t, Migrate(dsn))

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestIntegration_SyncAndReports(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	sync := NewSyncStore(pool)
	reports := NewReportStore(pool)

	// server knowledge
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	_, err := sync.GetServerKnowledge(ctx, "/budgets/b/accounts")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, sync.SaveServerKnowledge(ctx, "b", "/budgets/b/accounts", 10, now))
	require.NoError(t, sync.SaveServerKnowledge(ctx, "b", "/budgets/b/accounts", 12, now))
	sk, err := sync.GetServerKnowledge(ctx, "/budgets/b/accounts")
	require.NoError(t, err)
	assert.Equal(t, int64(12), sk.ServerKnowledge)

	// счета
	card := domain.Account{ID: uuid.New(), Name: "Amex", Type: domain.AccountTypeCreditCard, Balance: -50000}
	current := domain.Account{ID: uuid.New(), Name: "Current", Type: "checking", Balance: 900000}
	stats, err := sync.UpsertAccounts(ctx, []domain.Account{card, current})
	require.NoError(t, err)
	assert.Equal(t, UpsertStats{Created: 2}, stats)

	card.Balance = -60000
	stats, err = sync.UpsertAccounts(ctx, []domain.Account{card})
	require.NoError(t, err)
	assert.Equal(t, UpsertStats{Updated: 1}, stats)

	// категории
	groupID := uuid.New()
	groceries := domain.Category{ID: uuid.New(), CategoryGroupID: groupID, CategoryGroupName: "Frequent", Name: "Groceries", Activity: -42500}
	_, err = sync.UpsertCategories(ctx, []domain.Category{groceries})
	require.NoError(t, err)

	// транзакции
	day := domain.NewDate(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	payee := "Tesco"
	txs := []domain.Transaction{
		{ID: "t1", Date: day, Amount: -42500, AccountID: current.ID, AccountName: "Current",
			PayeeName: &payee, CategoryID: &groceries.ID, CategoryName: &groceries.Name, Cleared: "cleared"},
		{ID: "t2", Date: day, Amount: -60000, AccountID: current.ID, AccountName: "Current",
			TransferAccountID: &card.ID, Cleared: "cleared"},
	}
	for i := range txs {
		txs[i].Normalize()
	}
	stats, err = sync.UpsertTransactions(ctx, txs)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Created)

	linked, err := sync.LinkTransactionCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), linked)

	payments, err := sync.LinkCardPayments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), payments)

	rows, err := reports.Transactions(ctx, domain.TxFilter{
		From:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		To:    domain.MonthEnd(now),
		Debit: domain.Debits(),
		Group: "frequent",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(42500), rows[0].Amount)
	assert.Equal(t, "Frequent", rows[0].GroupName())

	cardRows, err := reports.CardPayments(ctx, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, cardRows, 1)
	assert.Equal(t, "Amex", cardRows[0].AccountName)

	income, spent, err := sync.MonthCashFlow(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), income)
	assert.Equal(t, int64(42500), spent)
}

func TestIntegration_AdminRepo(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	admin := NewAdminRepo(pool)

	res, err := LookupResource("savings")
	require.NoError(t, err)

	created, err := admin.Create(ctx, res, map[string]any{"date": "2024-06-01", "name": "Monthly", "target": 500.0})
	require.NoError(t, err)
	id, ok := created["id"].(string)
	require.True(t, ok)
	assert.Equal(t, "2024-06-01", created["date"])

	_, err = admin.Create(ctx, res, map[string]any{"date": "2024-06-01", "name": "Monthly"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	updated, err := admin.Update(ctx, res, id, map[string]any{"amount": 120.5})
	require.NoError(t, err)
	assert.Equal(t, 120.5, updated["amount"])

	list, total, err := admin.List(ctx, res, ListParams{End: 10, Filters: map[string]string{"name": "month"}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	// "_" и "%" не работают как шаблоны
	for _, pattern := range []string{"_", "%"} {
		_, total, err = admin.List(ctx, res, ListParams{End: 10, Filters: map[string]string{"name": pattern}})
		require.NoError(t, err)
		assert.Equal(t, 0, total, pattern)
	}

	_, err = admin.Delete(ctx, res, id)
	require.NoError(t, err)
	_, err = admin.Get(ctx, res, id)
	assert.ErrorIs(t, err, ErrNotFound)

	runs, err := LookupResource("sync-runs")
	require.NoError(t, err)
	_, err = admin.Create(ctx, runs, map[string]any{"job": "accounts"})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestIntegration_RunsAndSchedules(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	runs := NewRunRepo(pool)
	schedules := NewScheduleRepo(pool)

	// расписания из seed-миграции
	seeded, err := schedules.List(ctx, ScheduleFilter{})
	require.NoError(t, err)
	assert.Len(t, seeded, 7)

	missing, err := schedules.ListMissingNextDue(ctx)
	require.NoError(t, err)
	assert.Len(t, missing, 7)

	run := domain.NewSyncRun(domain.JobAccounts, domain.TriggerScheduler)
	run.IdempotencyKey = "schedule_1718452800"
	require.NoError(t, runs.Create(ctx, run))

	dup := domain.NewSyncRun(domain.JobAccounts, domain.TriggerScheduler)
	dup.IdempotencyKey = run.IdempotencyKey
	assert.ErrorIs(t, runs.Create(ctx, dup), ErrAlreadyExists)

	pending, err := runs.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	claimed, err := runs.Claim(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, claimed.Status)

	// повторный claim невозможен
	_, err = runs.Claim(ctx, run.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	claimed.MarkSucceeded([]byte(`{"job":"accounts","created":2}`))
	require.NoError(t, runs.Update(ctx, claimed))

	got, err := runs.GetByIdempotencyKey(ctx, run.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, got.Status)
	assert.JSONEq(t, `{"job":"accounts","created":2}`, string(got.Result))
}
