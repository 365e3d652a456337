// YNAB Portal API — HTTP API портала.
//
// API:
//   - Отдаёт отчёты и таблицы для react-admin
//   - Синхронно выполняет синхронизации /ynab/update-*
//   - Ставит sync runs в очередь и управляет расписаниями
//
// Использование:
//
//	ynab-api          запустить сервер (миграции применяются при старте)
//	ynab-api migrate  только применить миграции
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/shaiso/ynab-portal/internal/api"
	"github.com/shaiso/ynab-portal/internal/config"
	"github.com/shaiso/ynab-portal/internal/mq"
	"github.com/shaiso/ynab-portal/internal/repo"
	"github.com/shaiso/ynab-portal/internal/reports"
	ynabsync "github.com/shaiso/ynab-portal/internal/sync"
	"github.com/shaiso/ynab-portal/internal/telemetry"
	"github.com/shaiso/ynab-portal/internal/ynab"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "ynab-api",
		Short:         "YNAB Portal HTTP API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			telemetry.SetupLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return repo.Migrate(cfg.DBURL)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serve() error {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting ynab-api", "version", version)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		return err
	}
	logger.Info("config loaded", "config", cfg.String())

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := repo.Migrate(cfg.DBURL); err != nil {
		return err
	}

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(cfg.Env, registry)

	// Создаём репозитории
	runRepo := repo.NewRunRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)

	apiCfg := api.Config{
		Admin: repo.NewAdminRepo(pool),
		Reports: reports.New(reports.Config{
			Store:       repo.NewReportStore(pool),
			Groups:      reportGroups(cfg),
			IncomePayee: cfg.IncomePayee,
			Logger:      telemetry.Named("ynab.reports"),
		}),
		Runs:      runRepo,
		Schedules: scheduleRepo,
		Metrics:   metrics,
		Auth: api.AuthConfig{
			Token:    cfg.Token,
			Agent:    cfg.Agent,
			Hosts:    cfg.Hosts,
			Origins:  cfg.Origins,
			Referer:  cfg.Referer,
			Disabled: cfg.IsDevelopment(),
		},
		Logger: telemetry.Named("ynab.api"),
	}

	// Синхронизация доступна, только если задан токен YNAB
	if err := cfg.ValidateSync(); err != nil {
		logger.Warn("YNAB sync disabled", "reason", err)
	} else {
		client := ynab.New(ynab.Config{
			BaseURL:   cfg.YNABURL,
			Token:     cfg.YNABToken,
			BudgetID:  cfg.YNABBudgetID,
			RateLimit: cfg.YNABRateLimit,
			CacheTTL:  cfg.YNABCacheTTL,
			Metrics:   metrics,
			Logger:    telemetry.Named("ynab.client"),
		})
		apiCfg.Syncer = ynabsync.New(ynabsync.Config{
			Client:      client,
			Store:       repo.NewSyncStore(pool),
			SavingsName: cfg.SavingsName,
			Logger:      telemetry.Named("ynab.sync"),
		})
	}

	// RabbitMQ опционален: без него runs забираются воркерами polling'ом
	if cfg.RabbitMQURL != "" {
		conn, err := mq.NewConnection(cfg.RabbitMQURL, "ynab-api", telemetry.Named("ynab.mq"))
		if err != nil {
			logger.Warn("RabbitMQ not available, runs will be picked up by polling", "error", err)
		} else {
			defer conn.Close()
			if err := mq.SetupTopology(ctx, conn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			apiCfg.Publisher = mq.NewPublisher(conn, telemetry.Named("ynab.mq"))
		}
	}

	handler := api.NewHandler(apiCfg)

	server := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           handler.Routes(registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.APIAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Ожидаем сигнал завершения
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
	return nil
}

// reportGroups собирает группы категорий отчётов из конфигурации.
func reportGroups(cfg *config.Config) reports.Groups {
	g := reports.DefaultGroups()
	if len(cfg.CatExpenseNames) > 0 {
		g.Expense = cfg.CatExpenseNames
	}
	if len(cfg.ExcludeExpenseNames) > 0 {
		g.NonSpend = cfg.ExcludeExpenseNames
	}
	if len(cfg.ExcludeCats) > 0 {
		g.NonCategory = cfg.ExcludeCats
	}
	if len(cfg.ExcludeBudgets) > 0 {
		g.NoBudget = cfg.ExcludeBudgets
	}
	if cfg.BillsGroup != "" {
		g.Bills = cfg.BillsGroup
	}
	return g
}
