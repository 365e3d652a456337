// Package mq — обмен сообщениями о синхронизации через RabbitMQ.
//
// Структура:
//   - connection.go — соединение с переподключением
//   - topology.go   — обменники, очереди, привязки
//   - publisher.go  — публикация sync.requested и sync.completed
//   - consumer.go   — потребление с повтором и DLQ
//
// Типы сообщений:
//   - sync.requested — создан PENDING sync run (scheduler, api)
//   - sync.completed — sync run завершён (worker)
//
// Exchanges:
//   - ynab.sync — события синхронизации
//   - ynab.dlq  — dead letter
package mq
