package cron

import (
	"context"
	"fmt"

	"github.com/mbongotech/cookpay-backend/internal/payout"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
	"github.com/mbongotech/cookpay-backend/pkg/metrics"
)

// PayoutBacklogJobParams configure the payout backlog gauge job.
type PayoutBacklogJobParams struct {
	Logger  *logger.Logger
	Payouts payout.Service
	Metrics *metrics.PayoutMetrics
}

// NewPayoutBacklogJob builds the cron job that publishes the count of payout
// tasks awaiting retry or manual resolution.
func NewPayoutBacklogJob(params PayoutBacklogJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	return &payoutBacklogJob{
		logg:    params.Logger,
		payouts: params.Payouts,
		metrics: params.Metrics,
	}, nil
}

type payoutBacklogJob struct {
	logg    *logger.Logger
	payouts payout.Service
	metrics *metrics.PayoutMetrics
}

func (j *payoutBacklogJob) Name() string { return "payout-backlog" }

func (j *payoutBacklogJob) Run(ctx context.Context) error {
	count, err := j.payouts.CountPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("count pending payout tasks: %w", err)
	}
	if j.metrics != nil {
		j.metrics.SetBacklog(count)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"pending": count})
	j.logg.Info(logCtx, "payout backlog recorded")
	return nil
}
