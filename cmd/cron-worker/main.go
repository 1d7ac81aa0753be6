package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mbongotech/cookpay-backend/internal/audit"
	"github.com/mbongotech/cookpay-backend/internal/clearance"
	"github.com/mbongotech/cookpay-backend/internal/commission"
	"github.com/mbongotech/cookpay-backend/internal/cron"
	"github.com/mbongotech/cookpay-backend/internal/deduction"
	"github.com/mbongotech/cookpay-backend/internal/payout"
	"github.com/mbongotech/cookpay-backend/internal/wallet"
	"github.com/mbongotech/cookpay-backend/pkg/config"
	"github.com/mbongotech/cookpay-backend/pkg/db"
	"github.com/mbongotech/cookpay-backend/pkg/gateway"
	"github.com/mbongotech/cookpay-backend/pkg/instance"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
	"github.com/mbongotech/cookpay-backend/pkg/metrics"
	"github.com/mbongotech/cookpay-backend/pkg/migrate"
	"github.com/mbongotech/cookpay-backend/pkg/redis"
)

const lockKeyFormat = "cookpay:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	payoutMetrics := metrics.NewPayoutMetrics(prometheus.DefaultRegisterer)

	gatewayClient, err := gateway.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	auditSink, err := audit.NewGormSink(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create audit sink", err)
		os.Exit(1)
	}

	walletService, err := wallet.NewService(wallet.ServiceParams{
		Repo:   wallet.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	deductionService, err := deduction.NewService(deduction.ServiceParams{
		Repo:   deduction.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create deduction service", err)
		os.Exit(1)
	}

	commissionService, err := commission.NewService(commission.ServiceParams{
		Repo:        commission.NewRepository(dbClient.DB()),
		DB:          dbClient,
		Audit:       auditSink,
		Logger:      logg,
		DefaultRate: cfg.Settlement.DefaultCommissionRate,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create commission service", err)
		os.Exit(1)
	}

	clearanceService, err := clearance.NewService(clearance.ServiceParams{
		Repo:        clearance.NewRepository(dbClient.DB()),
		DB:          dbClient,
		Wallets:     walletService,
		Deductions:  deductionService,
		Commissions: commissionService,
		Audit:       auditSink,
		Logger:      logg,
		Settlement:  cfg.Settlement,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create clearance service", err)
		os.Exit(1)
	}

	payoutService, err := payout.NewService(payout.ServiceParams{
		Repo:       payout.NewRepository(dbClient.DB()),
		DB:         dbClient,
		Wallets:    walletService,
		Gateway:    gatewayClient,
		Audit:      auditSink,
		Logger:     logg,
		Metrics:    payoutMetrics,
		MaxRetries: cfg.Settlement.MaxPayoutRetries,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewClearanceSweepJob(cron.ClearanceSweepJobParams{
		Logger:     logg,
		Clearances: clearanceService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create clearance sweep job", err)
		os.Exit(1)
	}

	backlogJob, err := cron.NewPayoutBacklogJob(cron.PayoutBacklogJobParams{
		Logger:  logg,
		Payouts: payoutService,
		Metrics: payoutMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout backlog job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(sweepJob, backlogJob)

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Settlement.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
