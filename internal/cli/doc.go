// Package cli реализует инструмент командной строки YNAB Portal.
//
// # Обзор
//
// CLI — клиентская утилита для YNAB Portal API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI запускает синхронизации, показывает отчёты и таблицы портала,
// управляет sync runs и расписаниями.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Передаёт токен в заголовке X-Token,
// разбирает ответы (data-обёртка, списки, react-admin массивы с X-Total-Count)
// и ошибки {"error":{"code","message"}}. Ответы без фиксированной схемы
// (записи admin, отчёты) читаются через gjson.
//
//	client := cli.NewClient("http://localhost:8080", token)
//	result, _, err := client.Sync("transactions", false)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Отчёты всегда выводятся как JSON.
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr:
//
//	ynab run list --json | jq .
//
// ## Commands
//
//   - sync JOB [--force] [--queue]
//   - report NAME [--year] [--months] [--month] [--days] [--category --subcategory --view]
//   - admin: list, get, delete
//   - run: list, show, watch
//   - schedule: list, create, show, update, delete, enable, disable
//
// Каждая группа создаётся через фабричную функцию (NewSyncCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
