// Package sync переносит данные YNAB в локальную БД.
//
// Syncer выполняет задачи синхронизации (domain.Job). Списки, которые YNAB
// отдаёт дельтами (счета, категории, получатели, месяцы, транзакции),
// запрашиваются с сохранённым server_knowledge и не чаще раза в сутки,
// если запуск не принудительный.
//
// # Структура
//
//   - syncer.go — Syncer, Result, диспетчеризация задач
//   - delta.go — delta-задачи
//   - jobs.go — производные задачи (month-details, transaction-rels,
//     card-payments, savings)
//
// # Использование
//
//	syncer := sync.New(sync.Config{Client: client, Store: store})
//	res, err := syncer.Run(ctx, domain.JobTransactions, sync.Options{})
package sync
