package reports

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/shaiso/ynab-portal/internal/domain"
)

// ErrInvalidPeriod — некорректные параметры периода (year, months, month).
var ErrInvalidPeriod = errors.New("invalid period")

// PeriodMonths — допустимые значения параметра months.
var PeriodMonths = []int{1, 3, 6, 9, 12}

// Period — выбранный период отчёта. Нулевые поля не заданы.
type Period struct {
	Year   int
	Months int
	Month  int
}

// ParsePeriod разбирает параметры запроса. Пустые строки означают отсутствие параметра.
func ParsePeriod(year, months, month string) (Period, error) {
	var p Period

	if year != "" {
		y, err := strconv.Atoi(year)
		if err != nil || len(year) != 4 {
			return Period{}, fmt.Errorf("%w: year must have 4 digits, got %q", ErrInvalidPeriod, year)
		}
		p.Year = y
	}

	if months != "" {
		n, err := strconv.Atoi(months)
		if err != nil || !slices.Contains(PeriodMonths, n) {
			return Period{}, fmt.Errorf("%w: months must be one of %v, got %q", ErrInvalidPeriod, PeriodMonths, months)
		}
		p.Months = n
	}

	if month != "" {
		m, err := strconv.Atoi(month)
		if err != nil || len(month) > 2 || m < 1 || m > 12 {
			return Period{}, fmt.Errorf("%w: month must be 01..12, got %q", ErrInvalidPeriod, month)
		}
		p.Month = m
	}

	if p.Months > 0 && (p.Year > 0 || p.Month > 0) {
		return Period{}, fmt.Errorf("%w: months cannot be combined with year or month", ErrInvalidPeriod)
	}
	return p, nil
}

// Range возвращает границы периода относительно now (UTC). Конец — последняя секунда.
//
//	year         → весь год
//	year + month → месяц указанного года
//	month        → месяц текущего года
//	months (n)   → n последних месяцев, включая текущий
//	ничего       → текущий месяц
func (p Period) Range(now time.Time) (start, end time.Time) {
	now = now.UTC()
	switch {
	case p.Year > 0 && p.Month > 0:
		start = time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
		return start, domain.MonthEnd(start)
	case p.Year > 0:
		start = time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0).Add(-time.Second)
	case p.Month > 0:
		start = time.Date(now.Year(), time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
		return start, domain.MonthEnd(start)
	case p.Months > 0:
		current := domain.MonthStart(now)
		return current.AddDate(0, -(p.Months - 1), 0), domain.MonthEnd(current)
	default:
		start = domain.MonthStart(now)
		return start, domain.MonthEnd(start)
	}
}

// MonthsBetween возвращает число календарных месяцев, которые покрывает интервал.
// Используется как множитель месячных бюджетов.
func MonthsBetween(start, end time.Time) int {
	n := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
	if n < 1 {
		return 1
	}
	return n
}
