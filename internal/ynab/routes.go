package ynab

import (
	"fmt"
	"strconv"
	"strings"
)

// Действия, для которых строятся URL.
const (
	ActionBudgets               = "budgets-list"
	ActionBudget                = "budgets-single"
	ActionAccounts              = "accounts-list"
	ActionCategories            = "categories-list"
	ActionMonths                = "months-list"
	ActionMonth                 = "months-single"
	ActionPayees                = "payees-list"
	ActionTransactions          = "transactions-list"
	ActionScheduledTransactions = "scheduled-transactions-list"
)

// deltaActions — списки, поддерживающие server_knowledge.
var deltaActions = map[string]bool{
	ActionAccounts:     true,
	ActionCategories:   true,
	ActionMonths:       true,
	ActionPayees:       true,
	ActionTransactions: true,
}

// RouteParams — параметры маршрута.
type RouteParams struct {
	BudgetID  string
	Month     string // YYYY-MM-DD для months-single
	SinceDate string // YYYY-MM-DD для transactions-list
}

// Route возвращает путь запроса (без базового URL) для действия.
func Route(action string, p RouteParams) (string, error) {
	budget := "/budgets/" + p.BudgetID
	switch action {
	case ActionBudgets:
		return "/budgets", nil
	case ActionBudget:
		return budget, nil
	case ActionAccounts:
		return budget + "/accounts", nil
	case ActionCategories:
		return budget + "/categories", nil
	case ActionMonths:
		return budget + "/months", nil
	case ActionMonth:
		if p.Month == "" {
			return "", fmt.Errorf("%w: %s requires month", ErrUnknownRoute, action)
		}
		return budget + "/months/" + p.Month, nil
	case ActionPayees:
		return budget + "/payees", nil
	case ActionTransactions:
		if p.SinceDate != "" {
			return budget + "/transactions?since_date=" + p.SinceDate, nil
		}
		return budget + "/transactions", nil
	case ActionScheduledTransactions:
		return budget + "/scheduled_transactions", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRoute, action)
	}
}

// DeltaEligible возвращает true, если действие поддерживает delta-запросы.
func DeltaEligible(action string) bool {
	return deltaActions[action]
}

// WithServerKnowledge добавляет к URL параметр server_knowledge.
func WithServerKnowledge(url string, n int64) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "server_knowledge=" + strconv.FormatInt(n, 10)
}
