// Package scheduler создаёт sync runs по расписаниям.
//
// Scheduler периодически находит расписания с истекшим next_due_at,
// создаёт PENDING run для задачи расписания и публикует sync.requested.
//
// Структура:
//   - scheduler.go — Tick, SeedNextDue, processSchedule
//   - cron.go      — cron-выражения и вычисление следующего запуска
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Schedules: scheduleRepo,
//	    Runs:      runRepo,
//	    Publisher: publisher, // опционально
//	    Metrics:   metrics,
//	})
//
//	if err := sched.Tick(ctx); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// Leader Election:
//
// Tick вызывается только лидером. Лидер выбирается в cmd/ynab-scheduler
// через pg_try_advisory_lock.
package scheduler
