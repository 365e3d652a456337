package repo

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
)

// Kind — тип колонки ресурса, определяет преобразование значений.
type Kind int

const (
	KindText Kind = iota
	KindUUID
	KindInt
	KindFloat
	KindBool
	KindDate
	KindTime
	KindJSON
)

// Column — колонка таблицы ресурса.
type Column struct {
	Name string
	Kind Kind
}

// Resource — таблица, доступная через react-admin API.
type Resource struct {
	// Name — имя ресурса в URL (/portal/admin/{name}).
	Name string
	// Table — таблица в БД.
	Table string
	// Columns — колонки, первая всегда id.
	Columns []Column
	// Search — колонки, фильтр по которым ищет подстроку без учёта регистра.
	Search []string
	// ReadOnly запрещает create/update/delete.
	ReadOnly bool
	// DefaultSort — сортировка списка, если _sort не задан.
	DefaultSort string
}

// ErrUnknownResource — ресурс не зарегистрирован.
var ErrUnknownResource = fmt.Errorf("unknown resource: %w", ErrInvalidField)

var resources = map[string]*Resource{}

func register(r *Resource) {
	resources[r.Name] = r
}

// LookupResource возвращает ресурс по имени.
func LookupResource(name string) (*Resource, error) {
	r, ok := resources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}
	return r, nil
}

// ResourceNames возвращает отсортированный список ресурсов.
func ResourceNames() []string {
	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IDKind возвращает тип первичного ключа.
func (r *Resource) IDKind() Kind {
	return r.Columns[0].Kind
}

// Column возвращает колонку по имени.
func (r *Resource) Column(name string) (Column, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (r *Resource) isSearch(name string) bool {
	for _, s := range r.Search {
		if s == name {
			return true
		}
	}
	return false
}

func (r *Resource) columnList() string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

// coerce приводит значение из JSON или query-строки к Go-типу колонки.
func coerce(c Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	bad := func() error {
		return fmt.Errorf("%w: field %s: unexpected value %v", ErrConstraint, c.Name, v)
	}

	switch c.Kind {
	case KindText:
		switch x := v.(type) {
		case string:
			return x, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case json.Number:
			return x.String(), nil
		}
		return nil, bad()
	case KindUUID:
		s, ok := v.(string)
		if !ok {
			return nil, bad()
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, bad()
		}
		return id, nil
	case KindInt:
		switch x := v.(type) {
		case float64:
			return int64(x), nil
		case json.Number:
			n, err := x.Int64()
			if err != nil {
				return nil, bad()
			}
			return n, nil
		case string:
			n, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				return nil, bad()
			}
			return n, nil
		}
		return nil, bad()
	case KindFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case json.Number:
			f, err := x.Float64()
			if err != nil {
				return nil, bad()
			}
			return f, nil
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return nil, bad()
			}
			return f, nil
		}
		return nil, bad()
	case KindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, bad()
			}
			return b, nil
		}
		return nil, bad()
	case KindDate:
		s, ok := v.(string)
		if !ok {
			return nil, bad()
		}
		d, err := domain.ParseDate(s)
		if err != nil {
			return nil, bad()
		}
		return d.Time, nil
	case KindTime:
		s, ok := v.(string)
		if !ok {
			return nil, bad()
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, bad()
		}
		return t, nil
	case KindJSON:
		return v, nil
	}
	return nil, bad()
}

// present приводит значение из pgx.RowToMap к JSON-представлению.
func present(c Column, v any) any {
	switch x := v.(type) {
	case [16]byte:
		return uuid.UUID(x).String()
	case []byte:
		if c.Kind == KindText {
			return string(x)
		}
		return json.RawMessage(x)
	case time.Time:
		if c.Kind == KindDate {
			return x.Format(domain.DateLayout)
		}
		return x
	}
	return v
}

func init() {
	register(&Resource{
		Name:  "budgets",
		Table: "budgets",
		Columns: []Column{
			{"id", KindUUID}, {"category_id", KindUUID}, {"amount", KindFloat},
		},
		DefaultSort: "id",
	})
	register(&Resource{
		Name:  "savings",
		Table: "savings",
		Columns: []Column{
			{"id", KindUUID}, {"date", KindDate}, {"name", KindText},
			{"amount", KindFloat}, {"target", KindFloat},
		},
		Search:      []string{"name"},
		DefaultSort: "date",
	})
	register(&Resource{
		Name:  "loans-and-renewals",
		Table: "loans_and_renewals",
		Columns: []Column{
			{"id", KindUUID}, {"name", KindText}, {"type_id", KindUUID}, {"period_id", KindUUID},
			{"payment_amount", KindFloat}, {"start_date", KindDate}, {"end_date", KindDate},
			{"provider", KindText}, {"notes", KindText}, {"closed", KindBool},
			{"starting_balance", KindFloat},
		},
		Search:      []string{"name"},
		DefaultSort: "name",
	})
	register(&Resource{
		Name:        "loans-and-renewals-types",
		Table:       "loans_and_renewals_types",
		Columns:     []Column{{"id", KindUUID}, {"name", KindText}},
		Search:      []string{"name"},
		DefaultSort: "name",
	})
	register(&Resource{
		Name:        "loans-and-renewals-periods",
		Table:       "loans_and_renewals_periods",
		Columns:     []Column{{"id", KindUUID}, {"name", KindText}},
		Search:      []string{"name"},
		DefaultSort: "name",
	})
	register(&Resource{
		Name:  "ynab-accounts",
		Table: "ynab_accounts",
		Columns: []Column{
			{"id", KindUUID}, {"name", KindText}, {"type", KindText}, {"on_budget", KindBool},
			{"closed", KindBool}, {"note", KindText}, {"balance", KindInt},
			{"cleared_balance", KindInt}, {"uncleared_balance", KindInt},
			{"transfer_payee_id", KindUUID}, {"direct_import_linked", KindBool},
			{"direct_import_in_error", KindBool}, {"last_reconciled_at", KindTime},
			{"debt_original_balance", KindInt}, {"deleted", KindBool},
		},
		Search:      []string{"name"},
		DefaultSort: "name",
	})
	register(&Resource{
		Name:  "ynab-categories",
		Table: "ynab_categories",
		Columns: []Column{
			{"id", KindUUID}, {"category_group_id", KindUUID}, {"category_group_name", KindText},
			{"name", KindText}, {"hidden", KindBool}, {"original_category_group_id", KindUUID},
			{"note", KindText}, {"budgeted", KindInt}, {"activity", KindInt}, {"balance", KindInt},
			{"goal_type", KindText}, {"goal_day", KindInt}, {"goal_cadence", KindInt},
			{"goal_cadence_frequency", KindInt}, {"goal_creation_month", KindDate},
			{"goal_target", KindInt}, {"goal_target_month", KindDate},
			{"goal_percentage_complete", KindInt}, {"goal_months_to_budget", KindInt},
			{"goal_under_funded", KindInt}, {"goal_overall_funded", KindInt},
			{"goal_overall_left", KindInt}, {"deleted", KindBool},
		},
		Search:      []string{"name"},
		DefaultSort: "category_group_name",
	})
	register(&Resource{
		Name:  "ynab-month-summaries",
		Table: "ynab_month_summaries",
		Columns: []Column{
			{"id", KindUUID}, {"month", KindDate}, {"note", KindText}, {"income", KindInt},
			{"budgeted", KindInt}, {"activity", KindInt}, {"to_be_budgeted", KindInt},
			{"age_of_money", KindInt}, {"deleted", KindBool},
		},
		DefaultSort: "month",
	})
	register(&Resource{
		Name:  "ynab-month-detail-categories",
		Table: "ynab_month_detail_categories",
		Columns: []Column{
			{"id", KindUUID}, {"month_summary_id", KindUUID}, {"category_id", KindUUID},
			{"category_group_id", KindUUID}, {"category_group_name", KindText}, {"name", KindText},
			{"hidden", KindBool}, {"budgeted", KindInt}, {"activity", KindInt}, {"balance", KindInt},
			{"goal_type", KindText}, {"goal_target", KindInt}, {"deleted", KindBool},
		},
		Search:      []string{"name"},
		DefaultSort: "category_group_name",
	})
	register(&Resource{
		Name:  "ynab-payees",
		Table: "ynab_payees",
		Columns: []Column{
			{"id", KindUUID}, {"name", KindText}, {"transfer_account_id", KindUUID}, {"deleted", KindBool},
		},
		Search:      []string{"name"},
		DefaultSort: "name",
	})
	register(&Resource{
		Name:  "ynab-server-knowledge",
		Table: "ynab_server_knowledge",
		Columns: []Column{
			{"id", KindUUID}, {"budget_id", KindText}, {"route", KindText},
			{"server_knowledge", KindInt}, {"last_updated", KindTime},
		},
		DefaultSort: "route",
	})
	register(&Resource{
		Name:  "ynab-transaction",
		Table: "ynab_transactions",
		Columns: []Column{
			{"id", KindText}, {"date", KindDate}, {"amount", KindInt}, {"debit", KindBool},
			{"memo", KindText}, {"cleared", KindText}, {"approved", KindBool},
			{"flag_color", KindText}, {"flag_name", KindText}, {"account_id", KindUUID},
			{"account_name", KindText}, {"payee_id", KindUUID}, {"payee_name", KindText},
			{"category_id", KindUUID}, {"category_name", KindText},
			{"transfer_account_id", KindUUID}, {"transfer_transaction_id", KindText},
			{"matched_transaction_id", KindText}, {"import_id", KindText},
			{"import_payee_name", KindText}, {"import_payee_name_original", KindText},
			{"debt_transaction_type", KindText}, {"deleted", KindBool}, {"category_fk", KindUUID},
		},
		Search:      []string{"payee_name", "account_name", "category_name"},
		DefaultSort: "date",
	})
	register(&Resource{
		Name:  "card-payments",
		Table: "card_payments",
		Columns: []Column{
			{"id", KindUUID}, {"account_id", KindUUID}, {"transaction_id", KindText},
		},
		DefaultSort: "id",
	})
	register(&Resource{
		Name:  "sync-schedules",
		Table: "sync_schedules",
		Columns: []Column{
			{"id", KindUUID}, {"name", KindText}, {"job", KindText}, {"cron_expr", KindText},
			{"timezone", KindText}, {"enabled", KindBool}, {"next_due_at", KindTime},
			{"last_run_at", KindTime}, {"last_run_id", KindUUID},
			{"created_at", KindTime}, {"updated_at", KindTime},
		},
		Search:      []string{"name"},
		DefaultSort: "name",
	})
	register(&Resource{
		Name:  "sync-runs",
		Table: "sync_runs",
		Columns: []Column{
			{"id", KindUUID}, {"job", KindText}, {"status", KindText}, {"trigger", KindText},
			{"force", KindBool}, {"idempotency_key", KindText}, {"result", KindJSON},
			{"error", KindText}, {"started_at", KindTime}, {"finished_at", KindTime},
			{"created_at", KindTime},
		},
		ReadOnly:    true,
		DefaultSort: "created_at",
	})
}
