package cron

import (
	"context"
	"fmt"

	"github.com/mbongotech/cookpay-backend/internal/clearance"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
)

// ClearanceSweepJobParams configure the hold-window release job.
type ClearanceSweepJobParams struct {
	Logger     *logger.Logger
	Clearances clearance.Service
}

// NewClearanceSweepJob builds the cron job that releases matured clearances.
func NewClearanceSweepJob(params ClearanceSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Clearances == nil {
		return nil, fmt.Errorf("clearance service required")
	}
	return &clearanceSweepJob{
		logg:       params.Logger,
		clearances: params.Clearances,
	}, nil
}

type clearanceSweepJob struct {
	logg       *logger.Logger
	clearances clearance.Service
}

func (j *clearanceSweepJob) Name() string { return "clearance-sweep" }

// Run releases every due clearance. Per-row failures are collected by the
// sweep so one broken clearance never blocks the rest of the batch.
func (j *clearanceSweepJob) Run(ctx context.Context) error {
	result, err := j.clearances.Sweep(ctx)
	if result != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"scanned": result.Scanned,
			"cleared": result.Cleared,
			"skipped": result.Skipped,
		})
		j.logg.Info(logCtx, "clearance sweep complete")
	}
	return err
}
