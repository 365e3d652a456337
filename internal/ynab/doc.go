// Package ynab содержит HTTP-клиент YNAB API.
//
// Клиент ходит в YNAB с bearer-токеном, ограничивает частоту запросов
// (по умолчанию 200 в час, как лимит YNAB) и кэширует ответы на запросы
// без server_knowledge в LRU с TTL.
//
// # Структура
//
//   - routes.go — таблица маршрутов и server_knowledge
//   - client.go — Client, выполнение запросов, кэш, лимитер
//   - fetch.go — типизированные выборки (счета, категории, месяцы, ...)
//   - errors.go — ошибки API
//
// # Использование
//
//	client := ynab.New(ynab.Config{
//	    BaseURL:  cfg.YNABURL,
//	    Token:    cfg.YNABToken,
//	    BudgetID: cfg.YNABBudgetID,
//	    Metrics:  metrics,
//	})
//
//	accounts, sk, err := client.Accounts(ctx, lastKnowledge)
package ynab
