package domain

import (
	"time"

	"github.com/google/uuid"
)

// Денежные поля пользовательских таблиц хранятся в валюте (float),
// в отличие от milliunits YNAB.

// Budget — месячный бюджет для категории YNAB.
type Budget struct {
	ID         uuid.UUID `json:"id"`
	CategoryID uuid.UUID `json:"category_id"`
	Amount     float64   `json:"amount"`
}

// Saving — запись накоплений за месяц.
type Saving struct {
	ID     uuid.UUID `json:"id"`
	Date   Date      `json:"date"`
	Name   string    `json:"name"`
	Amount *float64  `json:"amount"`
	Target float64   `json:"target"`
}

// LoanRenewalType — тип обязательства.
type LoanRenewalType string

const (
	LoanRenewalInsurance    LoanRenewalType = "insurance"
	LoanRenewalSubscription LoanRenewalType = "subscription"
	LoanRenewalLoan         LoanRenewalType = "loan"
)

// Period — периодичность платежа.
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// LoanRenewal — кредит, страховка или подписка.
type LoanRenewal struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	TypeID          uuid.UUID       `json:"type_id"`
	Type            LoanRenewalType `json:"type"`
	PeriodID        uuid.UUID       `json:"period_id"`
	Period          Period          `json:"period"`
	PaymentAmount   float64         `json:"payment_amount"`
	StartDate       Date            `json:"start_date"`
	EndDate         *Date           `json:"end_date"`
	Provider        *string         `json:"provider"`
	Notes           *string         `json:"notes"`
	Closed          bool            `json:"closed"`
	StartingBalance float64         `json:"starting_balance"`
}

// RenewsIn проверяет, приходится ли платёж на месяц month.
//
// Обязательство должно быть активно в этом месяце. Ежемесячные и еженедельные
// платежи приходятся на каждый активный месяц, ежегодные — на месяц start_date.
func (l *LoanRenewal) RenewsIn(month time.Time) bool {
	start := MonthStart(month)
	end := MonthEnd(month)
	if l.Closed || l.StartDate.After(end) {
		return false
	}
	if l.EndDate != nil && !l.EndDate.IsZero() && l.EndDate.Before(start) {
		return false
	}
	switch l.Period {
	case PeriodYearly:
		return l.StartDate.Month() == month.Month()
	default:
		return true
	}
}

// MonthlyCost возвращает стоимость в пересчёте на месяц.
func (l *LoanRenewal) MonthlyCost() float64 {
	switch l.Period {
	case PeriodWeekly:
		return l.PaymentAmount * 52 / 12
	case PeriodYearly:
		return l.PaymentAmount / 12
	default:
		return l.PaymentAmount
	}
}

// YearlyCost возвращает стоимость за год.
func (l *LoanRenewal) YearlyCost() float64 {
	switch l.Period {
	case PeriodWeekly:
		return l.PaymentAmount * 52
	case PeriodYearly:
		return l.PaymentAmount
	default:
		return l.PaymentAmount * 12
	}
}

// CardPayment — перевод на счёт кредитной карты (оплата выписки).
type CardPayment struct {
	ID            uuid.UUID `json:"id"`
	AccountID     uuid.UUID `json:"account_id"`
	TransactionID string    `json:"transaction_id"`
}

// CardPaymentRow — оплата карты вместе с транзакцией для отчётов.
type CardPaymentRow struct {
	AccountName string `json:"account_name"`
	Date        Date   `json:"date"`
	Amount      int64  `json:"amount"`
}
