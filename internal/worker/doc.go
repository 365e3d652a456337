// Package worker выполняет sync runs.
//
// # Обзор
//
// Worker забирает PENDING runs, созданные scheduler'ом, API или CLI,
// и выполняет задачу синхронизации через sync.Syncer:
//
//   - Получение runs из очереди sync.requested (event-driven)
//   - Периодическая проверка PENDING runs в БД (polling fallback)
//   - Retry с exponential backoff при rate limit и 5xx YNAB
//   - Публикация итога в sync.completed
//
// Run забирается атомарно (PENDING → RUNNING), поэтому несколько воркеров
// могут читать одну очередь.
//
// # Использование
//
//	w := worker.New(worker.Config{
//	    Runs:      runRepo,
//	    Syncer:    syncer,
//	    Publisher: publisher, // опционально
//	    Conn:      mqConn,    // опционально
//	    Metrics:   metrics,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Ошибки
//
//   - ErrRunNotFound   — run удалён
//   - ErrRunNotPending — run уже взят или завершён
//
// Ошибка синхронизации не считается ошибкой обработки: run сохраняется
// как FAILED, сообщение подтверждается.
package worker
