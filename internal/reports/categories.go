package reports

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
)

// trendMonths — сколько месяцев показывает тренд категории.
const trendMonths = 6

// SubcategorySummary — траты подкатегории за период.
type SubcategorySummary struct {
	Name     string  `json:"name"`
	Amount   int64   `json:"amount"`
	Budgeted float64 `json:"budgeted"`
}

// CategorySummary — траты группы категорий за период.
type CategorySummary struct {
	ID            *uuid.UUID           `json:"id"`
	Category      string               `json:"category"`
	Amount        int64                `json:"amount"`
	Budgeted      float64              `json:"budgeted"`
	Subcategories []SubcategorySummary `json:"subcategories"`
}

// CategoriesSummary группирует списания за период по группе и подкатегории.
// Бюджеты умножаются на число месяцев периода.
func (s *Service) CategoriesSummary(ctx context.Context, p Period) ([]CategorySummary, error) {
	start, end := p.Range(s.now())

	rows, err := s.store.Transactions(ctx, domain.TxFilter{
		From:        start,
		To:          end,
		Debit:       domain.Debits(),
		GroupsNotIn: s.groups.NonCategory,
	})
	if err != nil {
		return nil, fmt.Errorf("categories summary: %w", err)
	}

	budgets, err := s.budgetsByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("categories summary: %w", err)
	}
	multiplier := float64(MonthsBetween(start, end))

	type subKey struct {
		group string
		name  string
	}
	var result []CategorySummary
	groupIndex := make(map[string]int)
	subIndex := make(map[subKey]int)
	for _, r := range rows {
		group := r.GroupName()
		gi, ok := groupIndex[group]
		if !ok {
			gi = len(result)
			groupIndex[group] = gi
			result = append(result, CategorySummary{ID: r.GroupID, Category: group})
		}
		g := &result[gi]
		g.Amount += r.Amount

		key := subKey{group: group, name: r.SubcategoryName()}
		si, ok := subIndex[key]
		if !ok {
			var budgeted float64
			if r.CategoryID != nil {
				budgeted = budgets[*r.CategoryID] * multiplier
			}
			si = len(g.Subcategories)
			subIndex[key] = si
			g.Subcategories = append(g.Subcategories, SubcategorySummary{Name: key.name, Budgeted: budgeted})
			g.Budgeted += budgeted
		}
		g.Subcategories[si].Amount += r.Amount
	}

	for i := range result {
		subs := result[i].Subcategories
		sort.SliceStable(subs, func(a, b int) bool { return subs[a].Amount > subs[b].Amount })
	}
	sort.SliceStable(result, func(a, b int) bool { return result[a].Amount > result[b].Amount })
	return nonNil(result), nil
}

// Trend — сравнение выбранного месяца со средним за предыдущие месяцы.
type Trend struct {
	AvgSpend   float64 `json:"avg_spend"`
	Period     string  `json:"period"`
	Trend      string  `json:"trend"`
	Percentage int     `json:"percentage"`
}

// MonthTotal — траты за месяц (YYYY-MM).
type MonthTotal struct {
	Month string `json:"month"`
	Total int64  `json:"total"`
}

// TrendSummary — тренды и помесячные траты.
type TrendSummary struct {
	Summary []Trend      `json:"summary"`
	Data    []MonthTotal `json:"data"`
}

// CategoryTrend — сводка по одной подкатегории.
type CategoryTrend struct {
	Total   int64        `json:"total"`
	OnTrack *bool        `json:"on_track"`
	Trends  TrendSummary `json:"trends"`
	Budget  float64      `json:"budget"`
}

// CategorySummary строит тренд подкатегории. Дефисы в имени подкатегории
// заменяются пробелами.
//
// Выбранный месяц — первый месяц периода. Тренды сравнивают его со средним
// за 1, 3 и 6 предыдущих месяцев. Data содержит шесть месяцев от старого к новому.
func (s *Service) CategorySummary(ctx context.Context, category, subcategory string, p Period) (*CategoryTrend, error) {
	subcategory = unslug(subcategory)
	start, end := p.Range(s.now())

	// Выбранный месяц плюс шесть предыдущих для самого длинного тренда.
	months := make([]string, trendMonths+1)
	totals := make(map[string]int64, len(months))
	for i := range months {
		months[i] = start.AddDate(0, -i, 0).Format("2006-01")
		totals[months[i]] = 0
	}

	rows, err := s.store.Transactions(ctx, domain.TxFilter{
		From:        start.AddDate(0, -trendMonths, 0),
		To:          end,
		Debit:       domain.Debits(),
		Group:       category,
		Subcategory: subcategory,
	})
	if err != nil {
		return nil, fmt.Errorf("category summary: %w", err)
	}
	for _, r := range rows {
		key := r.Date.Format("2006-01")
		if _, ok := totals[key]; ok {
			totals[key] += r.Amount
		}
	}

	selected := totals[months[0]]
	result := &CategoryTrend{Total: selected}

	budget, err := s.findBudget(ctx, category, subcategory)
	if err != nil {
		return nil, fmt.Errorf("category summary: %w", err)
	}
	if budget != nil {
		onTrack := toMilliunits(*budget) >= selected
		result.OnTrack = &onTrack
		result.Budget = *budget
	}

	for _, period := range []int{1, 3, 6} {
		var spent int64
		for _, m := range months[1 : period+1] {
			spent += totals[m]
		}
		result.Trends.Summary = append(result.Trends.Summary, trend(selected, spent, period))
	}

	for i := trendMonths - 1; i >= 0; i-- {
		result.Trends.Data = append(result.Trends.Data, MonthTotal{Month: months[i], Total: totals[months[i]]})
	}
	return result, nil
}

// trend сравнивает selected со средним spent за period месяцев.
func trend(selected, spent int64, period int) Trend {
	avg := float64(spent) / float64(period)

	pct := 0
	if avg != 0 {
		pct = int(math.Round((float64(selected) - avg) / avg * 100))
	}

	t := Trend{AvgSpend: avg, Trend: "flat", Percentage: pct}
	switch {
	case pct > 0:
		t.Trend = "up"
	case pct < 0:
		t.Trend = "down"
		t.Percentage = -pct
	}

	t.Period = "Last month"
	if period > 1 {
		t.Period = fmt.Sprintf("L%d months", period)
	}
	return t
}

// CategoryPayees возвращает траты подкатегории по получателям.
func (s *Service) CategoryPayees(ctx context.Context, category, subcategory string, p Period) (*PayeeSummary, error) {
	start, end := p.Range(s.now())
	rows, err := s.store.Transactions(ctx, domain.TxFilter{
		From:             start,
		To:               end,
		Debit:            domain.Debits(),
		ExcludeTransfers: true,
		Group:            category,
		Subcategory:      unslug(subcategory),
	})
	if err != nil {
		return nil, fmt.Errorf("category payees: %w", err)
	}
	return summarisePayees(rows), nil
}

// CategoryTransactions возвращает сводку транзакций подкатегории за вычетом возвратов.
func (s *Service) CategoryTransactions(ctx context.Context, category, subcategory string, p Period) (*TransactionSummary, error) {
	subcategory = unslug(subcategory)
	start, end := p.Range(s.now())
	rows, err := s.store.Transactions(ctx, domain.TxFilter{
		From:             start,
		To:               end,
		Debit:            domain.Debits(),
		ExcludeTransfers: true,
		Group:            category,
		Subcategory:      subcategory,
	})
	if err != nil {
		return nil, fmt.Errorf("category transactions: %w", err)
	}

	refunds, err := s.Refunds(ctx, p, category, subcategory)
	if err != nil {
		return nil, err
	}
	return s.summariseTransactions(ctx, rows, refunds)
}

// budgetsByCategory возвращает бюджеты по ID категории.
func (s *Service) budgetsByCategory(ctx context.Context) (map[uuid.UUID]float64, error) {
	cats, err := s.store.CategoryBudgets(ctx)
	if err != nil {
		return nil, err
	}
	budgets := make(map[uuid.UUID]float64)
	for _, c := range cats {
		if c.Budget != nil {
			budgets[c.CategoryID] = *c.Budget
		}
	}
	return budgets, nil
}

// findBudget ищет бюджет по имени группы и категории без учёта регистра.
func (s *Service) findBudget(ctx context.Context, group, name string) (*float64, error) {
	cats, err := s.store.CategoryBudgets(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cats {
		if c.Budget != nil && strings.EqualFold(c.GroupName, group) && strings.EqualFold(c.Name, name) {
			return c.Budget, nil
		}
	}
	return nil, nil
}

// unslug восстанавливает имя категории из URL.
func unslug(s string) string {
	return strings.ReplaceAll(s, "-", " ")
}
