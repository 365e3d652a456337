package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/ynab-portal/internal/domain"
	"github.com/shaiso/ynab-portal/internal/repo"
	"github.com/shaiso/ynab-portal/internal/ynab"
)

// fetchFunc запрашивает YNAB с известным server_knowledge и сохраняет ответ.
type fetchFunc func(ctx context.Context, knowledge int64) (repo.UpsertStats, int64, error)

// delta выполняет delta-задачу для действия YNAB action.
//
// Если маршрут уже синхронизирован сегодня и запуск не принудительный,
// YNAB не запрашивается.
func (s *Syncer) delta(ctx context.Context, job domain.Job, action string, opts Options, fetch fetchFunc) (*Result, error) {
	budgetID := s.client.BudgetID()
	route, err := ynab.Route(action, ynab.RouteParams{BudgetID: budgetID})
	if err != nil {
		return nil, err
	}

	now := s.now()
	var knowledge int64
	sk, err := s.store.GetServerKnowledge(ctx, route)
	switch {
	case errors.Is(err, repo.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		if sk.UpToDate(now) && !opts.Force {
			return &Result{
				Job:             job,
				Skipped:         true,
				Message:         "Already up to date.",
				ServerKnowledge: sk.ServerKnowledge,
			}, nil
		}
		knowledge = sk.ServerKnowledge
	}

	stats, newKnowledge, err := fetch(ctx, knowledge)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveServerKnowledge(ctx, budgetID, route, newKnowledge, now); err != nil {
		return nil, err
	}

	return &Result{
		Job:             job,
		Message:         fmt.Sprintf("Created %d, updated %d.", stats.Created, stats.Updated),
		Created:         stats.Created,
		Updated:         stats.Updated,
		ServerKnowledge: newKnowledge,
	}, nil
}

func (s *Syncer) syncAccounts(ctx context.Context, opts Options) (*Result, error) {
	return s.delta(ctx, domain.JobAccounts, ynab.ActionAccounts, opts, func(ctx context.Context, knowledge int64) (repo.UpsertStats, int64, error) {
		accounts, sk, err := s.client.Accounts(ctx, knowledge)
		if err != nil {
			return repo.UpsertStats{}, 0, err
		}
		stats, err := s.store.UpsertAccounts(ctx, accounts)
		return stats, sk, err
	})
}

func (s *Syncer) syncCategories(ctx context.Context, opts Options) (*Result, error) {
	return s.delta(ctx, domain.JobCategories, ynab.ActionCategories, opts, func(ctx context.Context, knowledge int64) (repo.UpsertStats, int64, error) {
		cats, sk, err := s.client.Categories(ctx, knowledge)
		if err != nil {
			return repo.UpsertStats{}, 0, err
		}
		stats, err := s.store.UpsertCategories(ctx, cats)
		return stats, sk, err
	})
}

func (s *Syncer) syncPayees(ctx context.Context, opts Options) (*Result, error) {
	return s.delta(ctx, domain.JobPayees, ynab.ActionPayees, opts, func(ctx context.Context, knowledge int64) (repo.UpsertStats, int64, error) {
		payees, sk, err := s.client.Payees(ctx, knowledge)
		if err != nil {
			return repo.UpsertStats{}, 0, err
		}
		stats, err := s.store.UpsertPayees(ctx, payees)
		return stats, sk, err
	})
}

func (s *Syncer) syncMonthSummaries(ctx context.Context, opts Options) (*Result, error) {
	return s.delta(ctx, domain.JobMonthSummaries, ynab.ActionMonths, opts, func(ctx context.Context, knowledge int64) (repo.UpsertStats, int64, error) {
		months, sk, err := s.client.Months(ctx, knowledge)
		if err != nil {
			return repo.UpsertStats{}, 0, err
		}
		stats, err := s.store.UpsertMonthSummaries(ctx, months)
		return stats, sk, err
	})
}

// syncTransactions загружает транзакции, затем связывает их с категориями
// и регистрирует оплаты карт.
func (s *Syncer) syncTransactions(ctx context.Context, opts Options) (*Result, error) {
	res, err := s.delta(ctx, domain.JobTransactions, ynab.ActionTransactions, opts, func(ctx context.Context, knowledge int64) (repo.UpsertStats, int64, error) {
		txs, sk, err := s.client.Transactions(ctx, opts.Since, knowledge)
		if err != nil {
			return repo.UpsertStats{}, 0, err
		}
		stats, err := s.store.UpsertTransactions(ctx, txs)
		return stats, sk, err
	})
	if err != nil || res.Skipped {
		return res, err
	}

	rels, err := s.syncTransactionRels(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := s.syncCardPayments(ctx)
	if err != nil {
		return nil, err
	}
	res.Related = []*Result{rels, payments}
	return res, nil
}
