package domain

import (
	"time"

	"github.com/google/uuid"
)

// Суммы YNAB хранятся в milliunits: 1.00 = 1000.

// Account — счёт бюджета YNAB.
type Account struct {
	ID                  uuid.UUID  `json:"id"`
	Name                string     `json:"name"`
	Type                string     `json:"type"`
	OnBudget            bool       `json:"on_budget"`
	Closed              bool       `json:"closed"`
	Note                *string    `json:"note"`
	Balance             int64      `json:"balance"`
	ClearedBalance      int64      `json:"cleared_balance"`
	UnclearedBalance    int64      `json:"uncleared_balance"`
	TransferPayeeID     *uuid.UUID `json:"transfer_payee_id"`
	DirectImportLinked  bool       `json:"direct_import_linked"`
	DirectImportInError bool       `json:"direct_import_in_error"`
	LastReconciledAt    *time.Time `json:"last_reconciled_at"`
	DebtOriginalBalance *int64     `json:"debt_original_balance"`
	Deleted             bool       `json:"deleted"`
}

// AccountTypeCreditCard — тип счёта кредитной карты.
const AccountTypeCreditCard = "creditCard"

// IsCreditCard возвращает true для счетов кредитных карт.
func (a *Account) IsCreditCard() bool {
	return a.Type == AccountTypeCreditCard
}

// Category — категория бюджета (подкатегория внутри группы).
type Category struct {
	ID                      uuid.UUID  `json:"id"`
	CategoryGroupID         uuid.UUID  `json:"category_group_id"`
	CategoryGroupName       string     `json:"category_group_name"`
	Name                    string     `json:"name"`
	Hidden                  bool       `json:"hidden"`
	OriginalCategoryGroupID *uuid.UUID `json:"original_category_group_id"`
	Note                    *string    `json:"note"`
	Budgeted                int64      `json:"budgeted"`
	Activity                int64      `json:"activity"`
	Balance                 int64      `json:"balance"`
	GoalType                *string    `json:"goal_type"`
	GoalDay                 *int       `json:"goal_day"`
	GoalCadence             *int       `json:"goal_cadence"`
	GoalCadenceFrequency    *int       `json:"goal_cadence_frequency"`
	GoalCreationMonth       *Date      `json:"goal_creation_month"`
	GoalTarget              *int64     `json:"goal_target"`
	GoalTargetMonth         *Date      `json:"goal_target_month"`
	GoalPercentageComplete  *int       `json:"goal_percentage_complete"`
	GoalMonthsToBudget      *int       `json:"goal_months_to_budget"`
	GoalUnderFunded         *int64     `json:"goal_under_funded"`
	GoalOverallFunded       *int64     `json:"goal_overall_funded"`
	GoalOverallLeft         *int64     `json:"goal_overall_left"`
	Deleted                 bool       `json:"deleted"`
}

// CategoryGroup — группа категорий в ответе YNAB.
type CategoryGroup struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Hidden     bool       `json:"hidden"`
	Deleted    bool       `json:"deleted"`
	Categories []Category `json:"categories"`
}

// MonthSummary — сводка бюджетного месяца.
type MonthSummary struct {
	ID           uuid.UUID `json:"id"`
	Month        Date      `json:"month"`
	Note         *string   `json:"note"`
	Income       int64     `json:"income"`
	Budgeted     int64     `json:"budgeted"`
	Activity     int64     `json:"activity"`
	ToBeBudgeted int64     `json:"to_be_budgeted"`
	AgeOfMoney   *int      `json:"age_of_money"`
	Deleted      bool      `json:"deleted"`
}

// MonthCategory — состояние категории в конкретном месяце.
type MonthCategory struct {
	ID                uuid.UUID `json:"id"`
	MonthSummaryID    uuid.UUID `json:"month_summary_id"`
	CategoryID        uuid.UUID `json:"category_id"`
	CategoryGroupID   uuid.UUID `json:"category_group_id"`
	CategoryGroupName string    `json:"category_group_name"`
	Name              string    `json:"name"`
	Hidden            bool      `json:"hidden"`
	Budgeted          int64     `json:"budgeted"`
	Activity          int64     `json:"activity"`
	Balance           int64     `json:"balance"`
	GoalType          *string   `json:"goal_type"`
	GoalTarget        *int64    `json:"goal_target"`
	Deleted           bool      `json:"deleted"`
}

// Payee — получатель платежа.
type Payee struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	TransferAccountID *uuid.UUID `json:"transfer_account_id"`
	Deleted           bool       `json:"deleted"`
}

// Transaction — транзакция.
//
// Amount хранится по модулю, знак вынесен в Debit (true — списание).
type Transaction struct {
	ID                      string     `json:"id"`
	Date                    Date       `json:"date"`
	Amount                  int64      `json:"amount"`
	Debit                   bool       `json:"debit"`
	Memo                    *string    `json:"memo"`
	Cleared                 string     `json:"cleared"`
	Approved                bool       `json:"approved"`
	FlagColor               *string    `json:"flag_color"`
	FlagName                *string    `json:"flag_name"`
	AccountID               uuid.UUID  `json:"account_id"`
	AccountName             string     `json:"account_name"`
	PayeeID                 *uuid.UUID `json:"payee_id"`
	PayeeName               *string    `json:"payee_name"`
	CategoryID              *uuid.UUID `json:"category_id"`
	CategoryName            *string    `json:"category_name"`
	TransferAccountID       *uuid.UUID `json:"transfer_account_id"`
	TransferTransactionID   *string    `json:"transfer_transaction_id"`
	MatchedTransactionID    *string    `json:"matched_transaction_id"`
	ImportID                *string    `json:"import_id"`
	ImportPayeeName         *string    `json:"import_payee_name"`
	ImportPayeeNameOriginal *string    `json:"import_payee_name_original"`
	DebtTransactionType     *string    `json:"debt_transaction_type"`
	Deleted                 bool       `json:"deleted"`
	CategoryFK              *uuid.UUID `json:"category_fk"`
}

// Normalize переводит знаковую сумму YNAB в пару (Amount, Debit).
func (t *Transaction) Normalize() {
	if t.Amount < 0 {
		t.Amount = -t.Amount
		t.Debit = true
	}
}

// IsTransfer возвращает true для переводов между счетами.
func (t *Transaction) IsTransfer() bool {
	return t.TransferAccountID != nil
}

// ServerKnowledge — состояние delta-синхронизации маршрута YNAB.
type ServerKnowledge struct {
	ID              uuid.UUID `json:"id"`
	BudgetID        string    `json:"budget_id"`
	Route           string    `json:"route"`
	ServerKnowledge int64     `json:"server_knowledge"`
	LastUpdated     time.Time `json:"last_updated"`
}

// UpToDate возвращает true, если маршрут синхронизирован сегодня (UTC).
func (sk *ServerKnowledge) UpToDate(now time.Time) bool {
	y1, m1, d1 := sk.LastUpdated.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
