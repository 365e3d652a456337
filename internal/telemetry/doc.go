// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go   — structured logging через slog, именованные логгеры
//   - logconfig.go — YAML-конфиг уровней по именам логгеров
//   - console.go   — консольный handler с цветными уровнями
//   - metrics.go   — Prometheus метрики
//
// Все сервисы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
