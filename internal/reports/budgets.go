package reports

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
)

// NeededGroup — группа с категориями без бюджета.
type NeededGroup struct {
	Name          string   `json:"name"`
	Count         int      `json:"count"`
	Subcategories []string `json:"subcategories"`
}

// BudgetsNeeded — категории, которым нужен бюджет.
type BudgetsNeeded struct {
	Count      int           `json:"count"`
	Categories []NeededGroup `json:"categories"`
}

// BudgetsNeeded возвращает категории без бюджета вне NoBudget, сгруппированные
// по группе. Группы упорядочены по убыванию количества.
func (s *Service) BudgetsNeeded(ctx context.Context) (*BudgetsNeeded, error) {
	cats, err := s.store.CategoryBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("budgets needed: %w", err)
	}

	result := &BudgetsNeeded{Categories: []NeededGroup{}}
	index := make(map[string]int)
	for _, c := range cats {
		if c.Budget != nil || slices.Contains(s.groups.NoBudget, c.GroupName) {
			continue
		}
		i, ok := index[c.GroupName]
		if !ok {
			i = len(result.Categories)
			index[c.GroupName] = i
			result.Categories = append(result.Categories, NeededGroup{Name: c.GroupName})
		}
		g := &result.Categories[i]
		g.Count++
		g.Subcategories = append(g.Subcategories, c.Name)
		result.Count++
	}

	sort.SliceStable(result.Categories, func(i, j int) bool {
		return result.Categories[i].Count > result.Categories[j].Count
	})
	return result, nil
}

// BudgetLine — подкатегория с бюджетом.
type BudgetLine struct {
	Name     string  `json:"name"`
	Budgeted float64 `json:"budgeted"`
	Spent    int64   `json:"spent"`
	OnTrack  bool    `json:"on_track"`
}

// BudgetGroup — группа бюджетов.
type BudgetGroup struct {
	Name          string       `json:"name"`
	Budgeted      float64      `json:"budgeted"`
	Spent         int64        `json:"spent"`
	OnTrack       int          `json:"on_track"`
	Overspent     int          `json:"overspent"`
	Subcategories []BudgetLine `json:"subcategories"`
}

// BudgetsDashboard — сводка бюджетов на текущий месяц.
type BudgetsDashboard struct {
	Total      float64       `json:"total"`
	OnTrack    int           `json:"on_track"`
	Overspent  int           `json:"overspent"`
	Needed     int           `json:"needed"`
	Categories []BudgetGroup `json:"categories"`
}

// BudgetsDashboard сравнивает бюджеты с активностью категорий в YNAB.
//
// Spent — модуль активности категории (milliunits). Подкатегория в норме,
// если бюджет * 1000 >= spent.
func (s *Service) BudgetsDashboard(ctx context.Context) (*BudgetsDashboard, error) {
	cats, err := s.store.CategoryBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("budgets dashboard: %w", err)
	}

	var groups []BudgetGroup
	index := make(map[string]int)
	for _, c := range cats {
		if c.Budget == nil {
			continue
		}
		i, ok := index[c.GroupName]
		if !ok {
			i = len(groups)
			index[c.GroupName] = i
			groups = append(groups, BudgetGroup{Name: c.GroupName})
		}

		spent := c.Activity
		if spent < 0 {
			spent = -spent
		}
		line := BudgetLine{
			Name:     c.Name,
			Budgeted: *c.Budget,
			Spent:    spent,
			OnTrack:  toMilliunits(*c.Budget) >= spent,
		}

		g := &groups[i]
		g.Budgeted += line.Budgeted
		g.Spent += line.Spent
		if line.OnTrack {
			g.OnTrack++
		} else {
			g.Overspent++
		}
		g.Subcategories = append(g.Subcategories, line)
	}

	dashboard := &BudgetsDashboard{Categories: nonNil(groups)}
	for _, g := range groups {
		dashboard.Total += g.Budgeted
		dashboard.OnTrack += g.OnTrack
		dashboard.Overspent += g.Overspent
	}
	sort.SliceStable(dashboard.Categories, func(i, j int) bool {
		return dashboard.Categories[i].Spent > dashboard.Categories[j].Spent
	})

	needed, err := s.BudgetsNeeded(ctx)
	if err != nil {
		return nil, err
	}
	dashboard.Needed = needed.Count
	return dashboard, nil
}

// toMilliunits переводит сумму в валюте в milliunits YNAB.
func toMilliunits(v float64) int64 {
	return int64(math.Round(v * 1000))
}
