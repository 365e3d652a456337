package cli

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// reportPaths — отчёты API по имени команды.
var reportPaths = map[string]string{
	"budgets-needed":      "/budgets-needed",
	"budgets-summary":     "/budgets-summary",
	"categories-summary":  "/categories-summary",
	"daily-spend":         "/daily-spend",
	"insurance":           "/insurance",
	"loan-portfolio":      "/loan-portfolio",
	"loans-renewals":      "/loans-renewals",
	"monthly-summary":     "/monthly-summary",
	"past-bills":          "/past-bills",
	"payees-summary":      "/payees-summary",
	"refunds":             "/refunds",
	"savings":             "/savings",
	"transaction-summary": "/transaction-summary",
	"upcoming-bills":      "/upcoming-bills",
}

// ReportNames возвращает имена отчётов по алфавиту.
func ReportNames() []string {
	names := make([]string, 0, len(reportPaths))
	for name := range reportPaths {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// reportQuery — параметры отчёта из флагов.
type reportQuery struct {
	year        int
	months      int
	month       int
	days        int
	category    string
	subcategory string
	view        string
}

// path строит путь и параметры запроса отчёта.
func (q reportQuery) path(name string) (string, url.Values, error) {
	path, ok := reportPaths[name]
	if !ok {
		return "", nil, fmt.Errorf("unknown report %q, available: %s", name, strings.Join(ReportNames(), ", "))
	}

	params := url.Values{}
	if q.year > 0 {
		params.Set("year", strconv.Itoa(q.year))
	}
	if q.months > 0 {
		params.Set("months", strconv.Itoa(q.months))
	}
	if q.month > 0 {
		params.Set("month", fmt.Sprintf("%02d", q.month))
	}

	switch name {
	case "daily-spend":
		params.Set("num_days", strconv.Itoa(q.days))
	case "categories-summary":
		if q.subcategory == "" {
			break
		}
		if q.category == "" {
			return "", nil, fmt.Errorf("--subcategory requires --category")
		}
		path += "/" + url.PathEscape(q.category) + "/" + url.PathEscape(strings.ReplaceAll(q.subcategory, " ", "-"))
		switch q.view {
		case "", "summary":
		case "payees", "transactions":
			path += "/" + q.view
		default:
			return "", nil, fmt.Errorf("unknown view %q, expected summary, payees or transactions", q.view)
		}
	}
	return path, params, nil
}

// NewReportCmd создаёт команду получения отчётов.
func NewReportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var q reportQuery

	cmd := &cobra.Command{
		Use:       "report NAME",
		Short:     "Show a report",
		Long:      "Show a report. Reports are printed as JSON.\n\nReports: " + strings.Join(ReportNames(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: ReportNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, params, err := q.path(args[0])
			if err != nil {
				return err
			}

			raw, err := clientFn().Report(path, params)
			if err != nil {
				return err
			}
			outputFn().RawJSON(raw)
			return nil
		},
	}

	cmd.Flags().IntVar(&q.year, "year", 0, "Year (YYYY)")
	cmd.Flags().IntVar(&q.months, "months", 0, "Last N months including the current one (1, 3, 6, 9, 12)")
	cmd.Flags().IntVar(&q.month, "month", 0, "Month (1-12)")
	cmd.Flags().IntVar(&q.days, "days", 1, "Days for daily-spend (1-7)")
	cmd.Flags().StringVar(&q.category, "category", "", "Category group for categories-summary")
	cmd.Flags().StringVar(&q.subcategory, "subcategory", "", "Subcategory for categories-summary")
	cmd.Flags().StringVar(&q.view, "view", "", "Subcategory view: summary, payees or transactions")

	return cmd
}
