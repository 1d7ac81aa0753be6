package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mbongotech/cookpay-backend/internal/payout"
	"github.com/mbongotech/cookpay-backend/pkg/db/models"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
	"github.com/mbongotech/cookpay-backend/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type fakePayoutService struct {
	pending int64
	err     error
}

func (f *fakePayoutService) RequestWithdrawal(ctx context.Context, input payout.WithdrawalInput) (*payout.WithdrawalResult, error) {
	return nil, nil
}

func (f *fakePayoutService) Retry(ctx context.Context, taskID uuid.UUID, actorID uuid.UUID) (*models.PayoutTask, error) {
	return nil, nil
}

func (f *fakePayoutService) MarkManuallyCompleted(ctx context.Context, taskID uuid.UUID, actorID uuid.UUID, referenceNumber, notes string) (*models.PayoutTask, error) {
	return nil, nil
}

func (f *fakePayoutService) ReconcileProviderSuccess(ctx context.Context, withdrawalID uuid.UUID, providerReference string) error {
	return nil
}

func (f *fakePayoutService) GetTask(ctx context.Context, taskID uuid.UUID) (*models.PayoutTask, error) {
	return nil, nil
}

func (f *fakePayoutService) ListPendingTasks(ctx context.Context, limit int) ([]models.PayoutTask, error) {
	return nil, nil
}

func (f *fakePayoutService) CountPendingTasks(ctx context.Context) (int64, error) {
	return f.pending, f.err
}

func (f *fakePayoutService) ListWithdrawals(ctx context.Context, cookWalletID uuid.UUID, limit int) ([]models.WithdrawalRequest, error) {
	return nil, nil
}

func TestPayoutBacklogJobPublishesGauge(t *testing.T) {
	payoutMetrics := metrics.NewPayoutMetrics(prometheus.NewRegistry())
	job, err := NewPayoutBacklogJob(PayoutBacklogJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Payouts: &fakePayoutService{pending: 7},
		Metrics: payoutMetrics,
	})
	if err != nil {
		t.Fatalf("NewPayoutBacklogJob: %v", err)
	}
	if job.Name() != "payout-backlog" {
		t.Fatalf("unexpected job name %s", job.Name())
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestPayoutBacklogJobWorksWithoutMetrics(t *testing.T) {
	job, err := NewPayoutBacklogJob(PayoutBacklogJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Payouts: &fakePayoutService{pending: 0},
	})
	if err != nil {
		t.Fatalf("NewPayoutBacklogJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestPayoutBacklogJobSurfacesCountError(t *testing.T) {
	job, err := NewPayoutBacklogJob(PayoutBacklogJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Payouts: &fakePayoutService{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("NewPayoutBacklogJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected the count error to surface")
	}
}

func TestNewPayoutBacklogJobValidatesDeps(t *testing.T) {
	if _, err := NewPayoutBacklogJob(PayoutBacklogJobParams{Payouts: &fakePayoutService{}}); err == nil {
		t.Fatal("expected error for missing logger")
	}
	if _, err := NewPayoutBacklogJob(PayoutBacklogJobParams{Logger: logger.New(logger.Options{ServiceName: "test"})}); err == nil {
		t.Fatal("expected error for missing payout service")
	}
}
