// YNAB Portal Scheduler — создаёт sync runs по расписаниям.
//
// Scheduler:
//   - Раз в секунду пытается стать лидером (pg advisory lock)
//   - Лидер выбирает due расписания, создаёт runs и сдвигает next_due_at
//   - Публикует sync.requested для воркеров
//
// Можно запускать несколько экземпляров: тики выполняет только лидер.
// В окружении development плановые синхронизации отключены.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/ynab-portal/internal/config"
	"github.com/shaiso/ynab-portal/internal/mq"
	"github.com/shaiso/ynab-portal/internal/repo"
	"github.com/shaiso/ynab-portal/internal/scheduler"
	"github.com/shaiso/ynab-portal/internal/telemetry"
)

const schedLockKey int64 = 424242

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting ynab-scheduler")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(cfg.Env, registry)

	schedCfg := scheduler.Config{
		Schedules: repo.NewScheduleRepo(pool),
		Runs:      repo.NewRunRepo(pool),
		Metrics:   metrics,
		Logger:    telemetry.Named("ynab.scheduler"),
	}

	// RabbitMQ опционален: без него воркеры забирают runs polling'ом
	if cfg.RabbitMQURL != "" {
		conn, err := mq.NewConnection(cfg.RabbitMQURL, "ynab-scheduler", telemetry.Named("ynab.mq"))
		if err != nil {
			logger.Warn("RabbitMQ not available, workers will poll", "error", err)
		} else {
			defer conn.Close()
			if err := mq.SetupTopology(ctx, conn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			schedCfg.Publisher = mq.NewPublisher(conn, telemetry.Named("ynab.mq"))
		}
	}

	sched := scheduler.New(schedCfg)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	if cfg.IsDevelopment() {
		logger.Info("scheduled syncs are disabled in development")
	} else {
		go runLoop(ctx, pool, sched)
	}

	server := &http.Server{Addr: cfg.SchedAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("listening", "addr", cfg.SchedAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
	logger.Info("ynab-scheduler stopped")
}

// runLoop раз в секунду захватывает (или подтверждает) лидерство и выполняет тик.
func runLoop(ctx context.Context, pool *pgxpool.Pool, sched *scheduler.Scheduler) {
	logger := telemetry.Named("ynab.scheduler")

	// advisory lock живёт на соединении, поэтому держим одно соединение
	conn, err := pool.Acquire(ctx)
	if err != nil {
		logger.Error("failed to acquire connection for leader lock", "error", err)
		return
	}
	defer conn.Release()

	tk := time.NewTicker(1 * time.Second)
	defer tk.Stop()

	var hasLock bool
	defer func() {
		if hasLock {
			_, _ = conn.Exec(context.Background(), "select pg_advisory_unlock($1)", schedLockKey)
		}
	}()

	for {
		select {
		case <-tk.C:
			// пытаемся стать лидером
			if !hasLock {
				var ok bool
				if err := conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", schedLockKey).Scan(&ok); err != nil {
					logger.Warn("leader lock failed", "error", err)
					continue
				}
				if ok {
					logger.Info("became leader")
				}
				hasLock = ok
			}

			if !hasLock {
				// не лидер — пропускаем тик
				continue
			}

			if err := sched.Tick(ctx); err != nil && ctx.Err() == nil {
				logger.Error("tick failed", "error", err)
			}

		case <-ctx.Done():
			return
		}
	}
}
