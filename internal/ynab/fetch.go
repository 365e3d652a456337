package ynab

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
	"github.com/tidwall/gjson"
)

// decodeList извлекает data.<key> и data.server_knowledge из ответа.
func decodeList[T any](body []byte, key string) ([]T, int64, error) {
	res := gjson.GetManyBytes(body, "data."+key, "data.server_knowledge")
	if !res[0].Exists() {
		return nil, 0, fmt.Errorf("%w: response has no data.%s", ErrAPI, key)
	}

	var items []T
	if err := json.Unmarshal([]byte(res[0].Raw), &items); err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return items, res[1].Int(), nil
}

// Accounts возвращает счета, изменённые после knowledge (0 — все).
func (c *Client) Accounts(ctx context.Context, knowledge int64) ([]domain.Account, int64, error) {
	body, err := c.Get(ctx, ActionAccounts, RouteParams{}, knowledge)
	if err != nil {
		return nil, 0, err
	}
	return decodeList[domain.Account](body, "accounts")
}

// Categories возвращает категории всех групп одним списком.
// Имя и ID группы проставляются из группы, если YNAB их не прислал.
func (c *Client) Categories(ctx context.Context, knowledge int64) ([]domain.Category, int64, error) {
	body, err := c.Get(ctx, ActionCategories, RouteParams{}, knowledge)
	if err != nil {
		return nil, 0, err
	}
	groups, sk, err := decodeList[domain.CategoryGroup](body, "category_groups")
	if err != nil {
		return nil, 0, err
	}

	var cats []domain.Category
	for _, g := range groups {
		for _, cat := range g.Categories {
			if cat.CategoryGroupName == "" {
				cat.CategoryGroupName = g.Name
			}
			if cat.CategoryGroupID == uuid.Nil {
				cat.CategoryGroupID = g.ID
			}
			cats = append(cats, cat)
		}
	}
	return cats, sk, nil
}

// Months возвращает сводки бюджетных месяцев.
func (c *Client) Months(ctx context.Context, knowledge int64) ([]domain.MonthSummary, int64, error) {
	body, err := c.Get(ctx, ActionMonths, RouteParams{}, knowledge)
	if err != nil {
		return nil, 0, err
	}
	return decodeList[domain.MonthSummary](body, "months")
}

// Month возвращает категории одного бюджетного месяца.
func (c *Client) Month(ctx context.Context, month time.Time) ([]domain.MonthCategory, error) {
	body, err := c.Get(ctx, ActionMonth, RouteParams{Month: domain.NewDate(domain.MonthStart(month)).String()}, 0)
	if err != nil {
		return nil, err
	}
	cats, _, err := decodeList[domain.Category](body, "month.categories")
	if err != nil {
		return nil, err
	}

	out := make([]domain.MonthCategory, 0, len(cats))
	for _, cat := range cats {
		out = append(out, domain.MonthCategory{
			CategoryID:        cat.ID,
			CategoryGroupID:   cat.CategoryGroupID,
			CategoryGroupName: cat.CategoryGroupName,
			Name:              cat.Name,
			Hidden:            cat.Hidden,
			Budgeted:          cat.Budgeted,
			Activity:          cat.Activity,
			Balance:           cat.Balance,
			GoalType:          cat.GoalType,
			GoalTarget:        cat.GoalTarget,
			Deleted:           cat.Deleted,
		})
	}
	return out, nil
}

// Payees возвращает получателей.
func (c *Client) Payees(ctx context.Context, knowledge int64) ([]domain.Payee, int64, error) {
	body, err := c.Get(ctx, ActionPayees, RouteParams{}, knowledge)
	if err != nil {
		return nil, 0, err
	}
	return decodeList[domain.Payee](body, "payees")
}

// Transactions возвращает транзакции с даты since (нулевое время — без ограничения).
// Суммы приводятся к паре (Amount, Debit), разбивки (subtransactions) не сохраняются.
func (c *Client) Transactions(ctx context.Context, since time.Time, knowledge int64) ([]domain.Transaction, int64, error) {
	var p RouteParams
	if !since.IsZero() {
		p.SinceDate = domain.NewDate(since).String()
	}
	body, err := c.Get(ctx, ActionTransactions, p, knowledge)
	if err != nil {
		return nil, 0, err
	}
	txs, sk, err := decodeList[domain.Transaction](body, "transactions")
	if err != nil {
		return nil, 0, err
	}
	for i := range txs {
		txs[i].Normalize()
	}
	return txs, sk, nil
}
