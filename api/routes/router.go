package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbongotech/cookpay-backend/api/controllers"
	"github.com/mbongotech/cookpay-backend/api/middleware"
	"github.com/mbongotech/cookpay-backend/internal/clearance"
	"github.com/mbongotech/cookpay-backend/internal/commission"
	"github.com/mbongotech/cookpay-backend/internal/deduction"
	"github.com/mbongotech/cookpay-backend/internal/payout"
	"github.com/mbongotech/cookpay-backend/internal/refund"
	"github.com/mbongotech/cookpay-backend/internal/wallet"
	"github.com/mbongotech/cookpay-backend/pkg/config"
	"github.com/mbongotech/cookpay-backend/pkg/db"
	"github.com/mbongotech/cookpay-backend/pkg/enums"
	"github.com/mbongotech/cookpay-backend/pkg/gateway"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
)

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DBPinger    db.Pinger
	RedisPinger db.Pinger
	Wallets     wallet.Service
	Deductions  deduction.Service
	Clearances  clearance.Service
	Commissions commission.Service
	Refunds     refund.Service
	Payouts     payout.Service
	Gateway     *gateway.Client
	Registry    *prometheus.Registry
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DBPinger, p.RedisPinger))
	})

	if p.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", controllers.GatewayWebhook(p.Payouts, p.Gateway, p.Logger))
	})

	r.Route("/api/v1/wallets", func(r chi.Router) {
		r.Route("/cooks/{walletID}", func(r chi.Router) {
			r.Get("/", controllers.GetCookWallet(p.Wallets, p.Logger))
			r.Get("/transactions", controllers.ListWalletTransactions(p.Wallets, enums.WalletKindCook, p.Logger))
			r.Get("/deductions", controllers.ListWalletDeductions(p.Deductions, p.Logger))
			r.Get("/clearances", controllers.ListWalletClearances(p.Clearances, p.Logger))
			r.Get("/withdrawals", controllers.ListWalletWithdrawals(p.Payouts, p.Logger))
		})
		r.Route("/clients/{clientID}", func(r chi.Router) {
			r.Get("/", controllers.GetClientWallet(p.Wallets, p.Logger))
		})
		r.Get("/client-ledgers/{walletID}/transactions", controllers.ListWalletTransactions(p.Wallets, enums.WalletKindClient, p.Logger))
	})

	r.Get("/api/v1/tenants/{tenantID}/cooks/{cookID}/wallet", controllers.GetCookWalletByOwner(p.Wallets, p.Logger))

	r.Route("/api/v1/clearances", func(r chi.Router) {
		r.Post("/", controllers.OpenClearance(p.Clearances, p.Logger))
	})

	r.Route("/api/v1/orders/{orderID}/clearance", func(r chi.Router) {
		r.Get("/", controllers.GetClearance(p.Clearances, p.Logger))
		r.Post("/pause", controllers.PauseClearance(p.Clearances, p.Logger))
		r.Post("/resume", controllers.ResumeClearance(p.Clearances, p.Logger))
		r.Post("/cancel", controllers.CancelClearance(p.Clearances, p.Logger))
	})

	r.Post("/api/v1/refunds", controllers.ExecuteRefund(p.Refunds, p.Logger))

	r.Post("/api/v1/withdrawals", controllers.RequestWithdrawal(p.Payouts, p.Logger))

	r.Route("/api/v1/payout-tasks", func(r chi.Router) {
		r.Get("/", controllers.ListPendingPayoutTasks(p.Payouts, p.Logger))
		r.Route("/{taskID}", func(r chi.Router) {
			r.Get("/", controllers.GetPayoutTask(p.Payouts, p.Logger))
			r.Post("/retry", controllers.RetryPayoutTask(p.Payouts, p.Logger))
			r.Post("/complete-manual", controllers.CompletePayoutTaskManually(p.Payouts, p.Logger))
		})
	})

	r.Route("/api/v1/tenants/{tenantID}/commission", func(r chi.Router) {
		r.Get("/", controllers.GetCommissionRate(p.Commissions, p.Logger))
		r.Put("/", controllers.SetCommissionRate(p.Commissions, p.Logger))
		r.Post("/reset", controllers.ResetCommissionRate(p.Commissions, p.Logger))
		r.Get("/history", controllers.ListCommissionChanges(p.Commissions, p.Logger))
	})

	return r
}
