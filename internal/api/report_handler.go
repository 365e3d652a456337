package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/shaiso/ynab-portal/internal/reports"
)

// reportFunc строит отчёт по запросу.
type reportFunc func(ctx context.Context, r *http.Request) (any, error)

// report оборачивает reportFunc: отчёт отдаётся без обёртки data.
func (h *Handler) report(fn reportFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := fn(r.Context(), r)
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		Raw(w, result)
	}
}

// period разбирает year, months и month из запроса.
func period(r *http.Request) (reports.Period, error) {
	q := r.URL.Query()
	return reports.ParsePeriod(q.Get("year"), q.Get("months"), q.Get("month"))
}

// intParam возвращает целый параметр запроса или def, если он не задан.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", reports.ErrInvalidPeriod, name, v)
	}
	return n, nil
}

// withPeriod — отчёт, зависящий только от периода.
func (h *Handler) withPeriod(fn func(ctx context.Context, p reports.Period) (any, error)) http.HandlerFunc {
	return h.report(func(ctx context.Context, r *http.Request) (any, error) {
		p, err := period(r)
		if err != nil {
			return nil, err
		}
		return fn(ctx, p)
	})
}

// withCategory — отчёт по подкатегории за период.
func (h *Handler) withCategory(fn func(ctx context.Context, category, subcategory string, p reports.Period) (any, error)) http.HandlerFunc {
	return h.report(func(ctx context.Context, r *http.Request) (any, error) {
		p, err := period(r)
		if err != nil {
			return nil, err
		}
		return fn(ctx, r.PathValue("category"), r.PathValue("subcategory"), p)
	})
}

// registerReports регистрирует отчёты. Все отчёты — GET.
func (h *Handler) registerReports(handle func(pattern string, fn http.HandlerFunc)) {
	svc := h.reports

	handle("GET /budgets-needed", h.report(func(ctx context.Context, _ *http.Request) (any, error) {
		return svc.BudgetsNeeded(ctx)
	}))
	handle("GET /budgets-summary", h.report(func(ctx context.Context, _ *http.Request) (any, error) {
		return svc.BudgetsDashboard(ctx)
	}))
	handle("GET /categories-summary", h.withPeriod(func(ctx context.Context, p reports.Period) (any, error) {
		return svc.CategoriesSummary(ctx, p)
	}))
	handle("GET /categories-summary/{category}/{subcategory}", h.withCategory(func(ctx context.Context, c, s string, p reports.Period) (any, error) {
		return svc.CategorySummary(ctx, c, s, p)
	}))
	handle("GET /categories-summary/{category}/{subcategory}/payees", h.withCategory(func(ctx context.Context, c, s string, p reports.Period) (any, error) {
		return svc.CategoryPayees(ctx, c, s, p)
	}))
	handle("GET /categories-summary/{category}/{subcategory}/transactions", h.withCategory(func(ctx context.Context, c, s string, p reports.Period) (any, error) {
		return svc.CategoryTransactions(ctx, c, s, p)
	}))
	handle("GET /daily-spend", h.report(func(ctx context.Context, r *http.Request) (any, error) {
		days, err := intParam(r, "num_days", 0)
		if err != nil {
			return nil, err
		}
		return svc.DailySpend(ctx, days)
	}))
	handle("GET /insurance", h.report(func(ctx context.Context, _ *http.Request) (any, error) {
		return svc.Insurance(ctx)
	}))
	handle("GET /loan-portfolio", h.report(func(ctx context.Context, _ *http.Request) (any, error) {
		return svc.LoanPortfolio(ctx)
	}))
	handle("GET /loans-renewals", h.report(func(ctx context.Context, _ *http.Request) (any, error) {
		return svc.LoansRenewalsOverview(ctx)
	}))
	handle("GET /monthly-summary", h.withPeriod(func(ctx context.Context, p reports.Period) (any, error) {
		return svc.MonthSummary(ctx, p)
	}))
	handle("GET /past-bills", h.report(func(ctx context.Context, r *http.Request) (any, error) {
		months, err := intParam(r, "months", 0)
		if err != nil {
			return nil, err
		}
		return svc.PastBills(ctx, months)
	}))
	handle("GET /payees-summary", h.withPeriod(func(ctx context.Context, p reports.Period) (any, error) {
		return svc.PayeeSummary(ctx, p)
	}))
	handle("GET /refunds", h.withPeriod(func(ctx context.Context, p reports.Period) (any, error) {
		return svc.Refunds(ctx, p, "", "")
	}))
	handle("GET /savings", h.report(func(ctx context.Context, r *http.Request) (any, error) {
		year, err := intParam(r, "year", 0)
		if err != nil {
			return nil, err
		}
		return svc.Savings(ctx, year)
	}))
	handle("GET /transaction-summary", h.withPeriod(func(ctx context.Context, p reports.Period) (any, error) {
		return svc.TransactionSummary(ctx, p)
	}))
	handle("GET /upcoming-bills", h.report(func(ctx context.Context, _ *http.Request) (any, error) {
		return svc.UpcomingBills(ctx)
	}))
}
