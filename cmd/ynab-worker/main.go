// YNAB Portal Worker — выполняет sync runs.
//
// Worker:
//   - Получает runs из очереди sync.requested
//   - Забирает PENDING runs из БД, если брокер недоступен
//   - Выполняет синхронизацию с retry для временных ошибок YNAB
//   - Публикует sync.completed
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/ynab-portal/internal/config"
	"github.com/shaiso/ynab-portal/internal/mq"
	"github.com/shaiso/ynab-portal/internal/repo"
	ynabsync "github.com/shaiso/ynab-portal/internal/sync"
	"github.com/shaiso/ynab-portal/internal/telemetry"
	"github.com/shaiso/ynab-portal/internal/worker"
	"github.com/shaiso/ynab-portal/internal/ynab"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting ynab-worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateSync(); err != nil {
		logger.Error("invalid config", "error", err)
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

	client := ynab.New(ynab.Config{
		BaseURL:   cfg.YNABURL,
		Token:     cfg.YNABToken,
		BudgetID:  cfg.YNABBudgetID,
		RateLimit: cfg.YNABRateLimit,
		CacheTTL:  cfg.YNABCacheTTL,
		Metrics:   metrics,
		Logger:    telemetry.Named("ynab.client"),
	})

	workerCfg := worker.Config{
		Runs: repo.NewRunRepo(pool),
		Syncer: ynabsync.New(ynabsync.Config{
			Client:      client,
			Store:       repo.NewSyncStore(pool),
			SavingsName: cfg.SavingsName,
			Logger:      telemetry.Named("ynab.sync"),
		}),
		Metrics: metrics,
		Logger:  telemetry.Named("ynab.worker"),
	}

	// RabbitMQ
	if cfg.RabbitMQURL == "" {
		logger.Warn("RABBITMQ_URL is not set, running in polling-only mode")
	} else {
		mqConn, err := mq.NewConnection(cfg.RabbitMQURL, "ynab-worker", telemetry.Named("ynab.mq"))
		if err != nil {
			logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			// Создаём топологию
			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			logger.Debug("topology", "info", mq.TopologyInfo())

			workerCfg.Conn = mqConn
			workerCfg.Publisher = mq.NewPublisher(mqConn, telemetry.Named("ynab.mq"))
		}
	}

	w := worker.New(workerCfg)

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		if w.IsStopped() {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: cfg.WorkerAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("listening", "addr", cfg.WorkerAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем worker
	w.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
	logger.Info("ynab-worker stopped")
}
