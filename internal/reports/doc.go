// Package reports строит отчёты портала по данным, сохранённым синхронизацией.
//
// Выборка выполняется через Store (в production — repo.ReportStore),
// агрегация и расчёты — в этом пакете.
//
// Структура:
//   - period.go     — разбор параметров year/months/month и границы периода
//   - service.go    — Service, Store и общие помощники
//   - budgets.go    — бюджеты: needed, dashboard
//   - categories.go — траты по категориям и по одной подкатегории
//   - spend.go      — месячная сводка, дневные траты, получатели, возвраты
//   - loans.go      — кредиты, подписки, страховки, счета, оплаты карт, накопления
//
// Суммы транзакций возвращаются в milliunits, пользовательские суммы
// (бюджеты, кредиты, накопления) в валюте.
package reports
