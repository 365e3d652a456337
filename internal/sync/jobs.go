package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/ynab-portal/internal/domain"
	"github.com/shaiso/ynab-portal/internal/repo"
)

// Сообщения производных задач.
const (
	msgComplete           = "Complete."
	msgMonthStored        = "Already stored for the previous month"
	msgNoMonthSummary     = "no month summary available. run update_month_summaries."
	msgMonthComplete      = "Complete"
	msgCategoryLinksFresh = "All transactions have category fk's synced."
)

// syncMonthDetails сохраняет категории предыдущего месяца, привязанные к его сводке.
func (s *Syncer) syncMonthDetails(ctx context.Context) (*Result, error) {
	res := &Result{Job: domain.JobMonthDetails}
	prev := domain.MonthStart(s.now().UTC()).AddDate(0, -1, 0)

	summary, err := s.store.MonthSummaryByMonth(ctx, prev)
	if errors.Is(err, repo.ErrNotFound) {
		res.Skipped = true
		res.Message = msgNoMonthSummary
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	stored, err := s.store.CountMonthCategories(ctx, summary.ID)
	if err != nil {
		return nil, err
	}
	if stored > 0 {
		res.Skipped = true
		res.Message = msgMonthStored
		return res, nil
	}

	cats, err := s.client.Month(ctx, prev)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.UpsertMonthCategories(ctx, summary.ID, cats)
	if err != nil {
		return nil, err
	}

	res.Created, res.Updated = stats.Created, stats.Updated
	res.Message = msgMonthComplete
	return res, nil
}

// syncTransactionRels проставляет category_fk. Транзакции, для которых
// категория так и не нашлась, логируются. Переводы категории не имеют.
func (s *Syncer) syncTransactionRels(ctx context.Context) (*Result, error) {
	res := &Result{Job: domain.JobTransactionRels}

	unlinked, err := s.store.ListUnlinkedTransactions(ctx)
	if err != nil {
		return nil, err
	}
	if len(unlinked) == 0 {
		res.Message = msgCategoryLinksFresh
		return res, nil
	}

	linked, err := s.store.LinkTransactionCategories(ctx)
	if err != nil {
		return nil, err
	}
	res.Updated = int(linked)

	if int(linked) < len(unlinked) {
		remaining, err := s.store.ListUnlinkedTransactions(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range remaining {
			if t.TransferAccountID != nil {
				continue
			}
			s.logger.WarnContext(ctx, "transaction category not found",
				"transaction_id", t.ID,
				"category_id", t.CategoryID,
			)
		}
	}

	res.Message = msgComplete
	return res, nil
}

// syncCardPayments регистрирует переводы на кредитные карты как оплаты карт.
func (s *Syncer) syncCardPayments(ctx context.Context) (*Result, error) {
	n, err := s.store.LinkCardPayments(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{
		Job:     domain.JobCardPayments,
		Created: int(n),
		Message: msgComplete,
	}, nil
}

// syncSavings записывает в накопления текущего месяца чистый денежный поток
// месяца (доход минус траты, в валюте).
func (s *Syncer) syncSavings(ctx context.Context) (*Result, error) {
	res := &Result{Job: domain.JobSavings}
	now := s.now().UTC()

	saving, err := s.store.FindSaving(ctx, s.savingsName, now)
	if errors.Is(err, repo.ErrNotFound) {
		res.Skipped = true
		res.Message = fmt.Sprintf("no savings row named %q for %s", s.savingsName, now.Format("2006-01"))
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	income, spent, err := s.store.MonthCashFlow(ctx, now)
	if err != nil {
		return nil, err
	}
	amount := float64(income-spent) / 1000
	if err := s.store.SetSavingAmount(ctx, saving.ID, amount); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "savings updated",
		"saving_id", saving.ID,
		"income", income,
		"spent", spent,
		"amount", amount,
	)
	res.Updated = 1
	res.Message = msgComplete
	return res, nil
}
