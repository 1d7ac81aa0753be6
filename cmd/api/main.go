package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mbongotech/cookpay-backend/api/routes"
	"github.com/mbongotech/cookpay-backend/internal/audit"
	"github.com/mbongotech/cookpay-backend/internal/clearance"
	"github.com/mbongotech/cookpay-backend/internal/commission"
	"github.com/mbongotech/cookpay-backend/internal/deduction"
	"github.com/mbongotech/cookpay-backend/internal/payout"
	"github.com/mbongotech/cookpay-backend/internal/refund"
	"github.com/mbongotech/cookpay-backend/internal/wallet"
	"github.com/mbongotech/cookpay-backend/pkg/config"
	"github.com/mbongotech/cookpay-backend/pkg/db"
	"github.com/mbongotech/cookpay-backend/pkg/gateway"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
	"github.com/mbongotech/cookpay-backend/pkg/metrics"
	"github.com/mbongotech/cookpay-backend/pkg/migrate"
	"github.com/mbongotech/cookpay-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	promRegistry := prometheus.NewRegistry()
	payoutMetrics := metrics.NewPayoutMetrics(promRegistry)

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

	refundService, err := refund.NewService(refund.ServiceParams{
		DB:         dbClient,
		Wallets:    walletService,
		Clearances: clearanceService,
		Deductions: deductionService,
		Audit:      auditSink,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create refund service", err)
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

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			DBPinger:    dbClient,
			RedisPinger: redisClient,
			Wallets:     walletService,
			Deductions:  deductionService,
			Clearances:  clearanceService,
			Commissions: commissionService,
			Refunds:     refundService,
			Payouts:     payoutService,
			Gateway:     gatewayClient,
			Registry:    promRegistry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
