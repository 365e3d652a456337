package domain

// RunStatus — статус выполнения sync run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не взят воркером.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — run успешно завершён.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — run завершился с ошибкой.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed:
		return true
	default:
		return false
	}
}

// RunTrigger — источник запуска sync run.
type RunTrigger string

const (
	TriggerScheduler RunTrigger = "scheduler"
	TriggerAPI       RunTrigger = "api"
	TriggerCLI       RunTrigger = "cli"
)

// ParseRunTrigger парсит строку в RunTrigger. Неизвестные значения считаются api.
func ParseRunTrigger(s string) RunTrigger {
	switch RunTrigger(s) {
	case TriggerScheduler:
		return TriggerScheduler
	case TriggerCLI:
		return TriggerCLI
	default:
		return TriggerAPI
	}
}
