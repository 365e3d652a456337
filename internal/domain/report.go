package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Группы категорий, на которых строятся отчёты.
var (
	// ExpenseGroups — группы повседневных расходов (возвраты ищутся только в них).
	ExpenseGroups = []string{"Frequent", "Giving", "Non-Monthly Expenses", "Work"}
	// NonSpendGroups — группы, не считающиеся тратами.
	NonSpendGroups = []string{"Monthly Bills", "Loans", "Credit Card Payments"}
	// NonCategoryGroups — NonSpendGroups плюс служебная группа дохода.
	NonCategoryGroups = []string{"Monthly Bills", "Loans", "Credit Card Payments", "Internal Master Category"}
	// NoBudgetGroups — группы, для которых бюджет не требуется.
	NoBudgetGroups = []string{
		"Monthly Bills", "Yearly Bills", "Loans", "Credit Card Payments",
		"Internal Master Category", "Non-Monthly Expenses", "Saving Goals", "Holidays",
	}
)

// BillsGroup — группа ежемесячных счетов.
const BillsGroup = "Monthly Bills"

// TransactionRow — транзакция в форме, возвращаемой отчётами.
//
// Category — имя группы связанной категории (category_fk), Subcategory — имя
// категории из самой транзакции.
type TransactionRow struct {
	ID          string     `json:"id"`
	AccountID   uuid.UUID  `json:"account_id"`
	Amount      int64      `json:"amount"`
	AccountName string     `json:"account_name"`
	Date        Date       `json:"date"`
	Category    *string    `json:"category"`
	Subcategory *string    `json:"subcategory"`
	Payee       *string    `json:"payee"`
	Memo        *string    `json:"-"`
	CategoryID  *uuid.UUID `json:"-"`
	GroupID     *uuid.UUID `json:"-"`
	Debit       bool       `json:"-"`
	Transfer    bool       `json:"-"`
}

// GroupName возвращает имя группы или пустую строку.
func (r *TransactionRow) GroupName() string {
	if r.Category == nil {
		return ""
	}
	return *r.Category
}

// SubcategoryName возвращает имя категории или пустую строку.
func (r *TransactionRow) SubcategoryName() string {
	if r.Subcategory == nil {
		return ""
	}
	return *r.Subcategory
}

// PayeeName возвращает имя получателя или пустую строку.
func (r *TransactionRow) PayeeName() string {
	if r.Payee == nil {
		return ""
	}
	return *r.Payee
}

// TxFilter — условия выборки транзакций для отчётов.
//
// Удалённые транзакции не попадают никогда. Условия на группу требуют
// связанной категории. From и To включительны, нулевое значение снимает границу.
type TxFilter struct {
	From             time.Time
	To               time.Time
	Debit            *bool
	ExcludeTransfers bool
	GroupsIn         []string
	GroupsNotIn      []string
	// Group и Subcategory сравниваются без учёта регистра.
	Group       string
	Subcategory string
	Payee       string
}

// Debits — указатель на true для поля Debit.
func Debits() *bool {
	v := true
	return &v
}

// Credits — указатель на false для поля Debit.
func Credits() *bool {
	v := false
	return &v
}

// NeedsCategory возвращает true, если фильтр ограничивает группу категории.
func (f *TxFilter) NeedsCategory() bool {
	return len(f.GroupsIn) > 0 || len(f.GroupsNotIn) > 0 || f.Group != "" || f.Subcategory != ""
}

// Match проверяет строку на соответствие фильтру.
func (f *TxFilter) Match(r *TransactionRow) bool {
	day := NewDate(r.Date.Time).Time
	if !f.From.IsZero() && day.Before(NewDate(f.From).Time) {
		return false
	}
	if !f.To.IsZero() && day.After(f.To) {
		return false
	}
	if f.Debit != nil && r.Debit != *f.Debit {
		return false
	}
	if f.ExcludeTransfers && r.Transfer {
		return false
	}
	if f.NeedsCategory() && r.Category == nil {
		return false
	}
	if len(f.GroupsIn) > 0 && !slices.Contains(f.GroupsIn, *r.Category) {
		return false
	}
	if len(f.GroupsNotIn) > 0 && slices.Contains(f.GroupsNotIn, *r.Category) {
		return false
	}
	if f.Group != "" && !strings.EqualFold(f.Group, *r.Category) {
		return false
	}
	if f.Subcategory != "" && !strings.EqualFold(f.Subcategory, r.SubcategoryName()) {
		return false
	}
	if f.Payee != "" && f.Payee != r.PayeeName() {
		return false
	}
	return true
}

// CategoryBudget — категория вместе с её бюджетом (nil, если бюджета нет).
type CategoryBudget struct {
	CategoryID uuid.UUID `json:"category_id"`
	GroupID    uuid.UUID `json:"category_group_id"`
	GroupName  string    `json:"category_group_name"`
	Name       string    `json:"name"`
	Activity   int64     `json:"activity"`
	Budget     *float64  `json:"budget"`
}
