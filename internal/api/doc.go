// Package api реализует HTTP API портала.
//
// Структура:
//   - routes.go           — маршруты, /health, 404
//   - middleware.go       — Recovery, Logging, Metrics, Auth, CORS
//   - response.go         — JSON ответы и преобразование ошибок
//   - admin_handler.go    — react-admin CRUD /portal/admin/{resource}
//   - report_handler.go   — отчёты (/monthly-summary, /daily-spend, ...)
//   - sync_handler.go     — синхронная синхронизация /ynab/update-{job}
//   - run_handler.go      — sync runs /portal/sync/runs
//   - schedule_handler.go — расписания /portal/sync/schedules
//
// Списки react-admin и отчёты отдаются без обёртки data, количество записей
// списка передаётся в заголовке X-Total-Count. Остальные ответы используют
// {"data": ...} и {"error": {"code", "message"}}.
//
// Все маршруты, кроме /health и /metrics, требуют X-Token.
package api
