package deduction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mbongotech/cookpay-backend/pkg/db/models"
	"github.com/mbongotech/cookpay-backend/pkg/enums"
	apperrors "github.com/mbongotech/cookpay-backend/pkg/errors"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
)

// Service tracks refund debt a cook wallet could not cover and settles it
// against future credits, oldest first.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.PendingDeduction, error)
	SettleAgainst(ctx context.Context, tx *gorm.DB, cookWalletID uuid.UUID, credit int64, now time.Time) (net int64, settled int64, err error)
	ListByWallet(ctx context.Context, cookWalletID uuid.UUID, includeSettled bool) ([]models.PendingDeduction, error)
	OpenTotal(ctx context.Context, cookWalletID uuid.UUID) (int64, error)
}

// RecordInput describes a new deduction.
type RecordInput struct {
	CookWalletID uuid.UUID
	OrderID      *uuid.UUID
	Amount       int64
	Reason       string
	Source       enums.DeductionSource
}

// ServiceParams collects the service dependencies.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService validates dependencies and constructs the deduction service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("deduction service requires a repository")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("deduction service requires a logger")
	}
	return &service{repo: params.Repo, logger: params.Logger}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.PendingDeduction, error) {
	if input.CookWalletID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "cook wallet id is required")
	}
	if input.Amount <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "deduction amount must be positive")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "deduction reason is required")
	}
	if !input.Source.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid deduction source")
	}

	row := &models.PendingDeduction{
		CookWalletID:    input.CookWalletID,
		OrderID:         input.OrderID,
		OriginalAmount:  input.Amount,
		RemainingAmount: input.Amount,
		Reason:          strings.TrimSpace(input.Reason),
		Source:          input.Source,
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "record pending deduction")
	}

	s.logger.Info(s.logger.WithWalletID(ctx, input.CookWalletID.String()),
		fmt.Sprintf("pending deduction recorded for %d", input.Amount))
	return row, nil
}

// SettleAgainst consumes the wallet's open deductions with an incoming credit.
// It returns the net amount left for the wallet after settlement and how much
// was applied to debt. Must run on the caller's transaction, after the wallet
// row lock is held, so settlement and the credit commit together.
func (s *service) SettleAgainst(ctx context.Context, tx *gorm.DB, cookWalletID uuid.UUID, credit int64, now time.Time) (int64, int64, error) {
	if credit <= 0 {
		return 0, 0, apperrors.New(apperrors.CodeValidation, "credit must be positive")
	}

	repo := s.repo.WithTx(tx)
	open, err := repo.FindOpenByWalletForUpdate(ctx, cookWalletID)
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.CodeInternal, err, "load open deductions")
	}

	remaining := credit
	var settled int64
	for i := range open {
		if remaining == 0 {
			break
		}
		row := &open[i]

		applied := row.RemainingAmount
		if applied > remaining {
			applied = remaining
		}
		row.RemainingAmount -= applied
		if row.RemainingAmount == 0 {
			at := now
			row.SettledAt = &at
		}
		if err := repo.Update(ctx, row); err != nil {
			return 0, 0, apperrors.Wrap(apperrors.CodeInternal, err, "settle pending deduction")
		}

		remaining -= applied
		settled += applied
	}

	if settled > 0 {
		s.logger.Info(s.logger.WithWalletID(ctx, cookWalletID.String()),
			fmt.Sprintf("settled %d of deduction debt, %d passed through", settled, remaining))
	}
	return remaining, settled, nil
}

func (s *service) ListByWallet(ctx context.Context, cookWalletID uuid.UUID, includeSettled bool) ([]models.PendingDeduction, error) {
	rows, err := s.repo.ListByWallet(ctx, cookWalletID, includeSettled)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "list pending deductions")
	}
	return rows, nil
}

func (s *service) OpenTotal(ctx context.Context, cookWalletID uuid.UUID) (int64, error) {
	total, err := s.repo.SumOpenByWallet(ctx, cookWalletID)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, err, "sum open deductions")
	}
	return total, nil
}
