package refund

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mbongotech/cookpay-backend/internal/audit"
	"github.com/mbongotech/cookpay-backend/internal/clearance"
	"github.com/mbongotech/cookpay-backend/internal/deduction"
	"github.com/mbongotech/cookpay-backend/internal/wallet"
	"github.com/mbongotech/cookpay-backend/pkg/db"
	apperrors "github.com/mbongotech/cookpay-backend/pkg/errors"
	"github.com/mbongotech/cookpay-backend/pkg/enums"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
)

// Input describes a refund decided against an order.
type Input struct {
	OrderID  uuid.UUID
	ClientID uuid.UUID
	Amount   int64
	Reason   string
	Source   enums.DeductionSource
	ActorID  *uuid.UUID
}

// Result reports how the refund was funded.
type Result struct {
	// ReversedFromHold is the amount recovered by cancelling the order's
	// uncleared clearance.
	ReversedFromHold int64
	// DebitedWithdrawable is the amount taken from the cook's withdrawable
	// balance after the reversal.
	DebitedWithdrawable int64
	// DeductionRecorded is the shortfall carried as debt against future
	// earnings.
	DeductionRecorded int64
	// ReturnedToCook is the portion of the cancelled hold that exceeded the
	// refund and was credited back to the cook's withdrawable balance.
	ReturnedToCook int64
	// CreditedToClient is the amount credited to the client wallet, always
	// equal to the requested refund.
	CreditedToClient int64
}

// Service executes refunds. The client is always made whole immediately; the
// cook side is funded from the order's held clearance first, then the
// withdrawable balance, and any shortfall becomes a pending deduction.
type Service interface {
	Execute(ctx context.Context, input Input) (*Result, error)
}

// ServiceParams collects the service dependencies.
type ServiceParams struct {
	DB         *db.Client
	Wallets    wallet.Service
	Clearances clearance.Service
	Deductions deduction.Service
	Audit      audit.Sink
	Logger     *logger.Logger
}

type service struct {
	db         *db.Client
	wallets    wallet.Service
	clearances clearance.Service
	deductions deduction.Service
	audit      audit.Sink
	logger     *logger.Logger
}

// NewService validates dependencies and constructs the refund service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("refund service requires a database")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("refund service requires the wallet service")
	}
	if params.Clearances == nil {
		return nil, fmt.Errorf("refund service requires the clearance service")
	}
	if params.Deductions == nil {
		return nil, fmt.Errorf("refund service requires the deduction service")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("refund service requires an audit sink")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("refund service requires a logger")
	}
	return &service{
		db:         params.DB,
		wallets:    params.Wallets,
		clearances: params.Clearances,
		deductions: params.Deductions,
		audit:      params.Audit,
		logger:     params.Logger,
	}, nil
}

func (s *service) Execute(ctx context.Context, input Input) (*Result, error) {
	if input.OrderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id is required")
	}
	if input.ClientID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "client id is required")
	}
	if input.Amount <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "refund amount must be positive")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "refund reason is required")
	}
	if !input.Source.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid refund source")
	}

	var result Result
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		cl, err := s.clearances.GetByOrderID(ctx, input.OrderID)
		if err != nil {
			return err
		}
		cookWalletID := cl.CookWalletID
		orderID := input.OrderID

		remainder := input.Amount

		// An uncleared clearance is cancelled first so the held funds cover
		// the refund before the cook's withdrawable balance is touched.
		if !cl.IsCleared && !cl.IsCancelled {
			cancelled, err := s.clearances.Cancel(ctx, tx, input.OrderID, input.ActorID, input.Reason)
			if err != nil {
				return err
			}
			reversed := cancelled.Amount
			if reversed > remainder {
				// Cancelling debits the full held amount. The portion not
				// consumed by the refund goes back to the cook, withdrawable
				// since the order is settled either way.
				surplus := reversed - remainder
				if _, err := s.wallets.Credit(ctx, tx, enums.WalletKindCook, cookWalletID, wallet.Entry{
					Amount:  surplus,
					Type:    enums.WalletTransactionTypeClearanceReversal,
					OrderID: &orderID,
					Metadata: map[string]string{
						"reason": "hold reversal exceeds refund",
					},
				}, true); err != nil {
					return err
				}
				result.ReturnedToCook = surplus
				reversed = remainder
			}
			result.ReversedFromHold = reversed
			remainder -= reversed
		}

		if remainder > 0 {
			cookWallet, err := s.wallets.GetCookWallet(ctx, cookWalletID)
			if err != nil {
				return err
			}

			fromWithdrawable := cookWallet.WithdrawableBalance
			if fromWithdrawable > remainder {
				fromWithdrawable = remainder
			}
			if fromWithdrawable > 0 {
				if _, err := s.wallets.Debit(ctx, tx, enums.WalletKindCook, cookWalletID, wallet.Entry{
					Amount:  fromWithdrawable,
					Type:    enums.WalletTransactionTypeRefund,
					OrderID: &orderID,
					Metadata: map[string]string{
						"reason": input.Reason,
					},
				}); err != nil {
					return err
				}
				result.DebitedWithdrawable = fromWithdrawable
				remainder -= fromWithdrawable
			}
		}

		if remainder > 0 {
			if _, err := s.deductions.Record(ctx, tx, deduction.RecordInput{
				CookWalletID: cookWalletID,
				OrderID:      &orderID,
				Amount:       remainder,
				Reason:       input.Reason,
				Source:       input.Source,
			}); err != nil {
				return err
			}
			result.DeductionRecorded = remainder

			if err := s.audit.Record(ctx, tx, audit.Event{
				Action:      enums.AuditActionDeductionRecorded,
				ActorID:     input.ActorID,
				SubjectType: "cook_wallet",
				SubjectID:   cookWalletID,
				Metadata: map[string]any{
					"order_id": orderID.String(),
					"amount":   remainder,
				},
			}); err != nil {
				return err
			}
		}

		clientWallet, err := s.wallets.GetOrCreateClientWallet(ctx, tx, input.ClientID)
		if err != nil {
			return err
		}
		if _, err := s.wallets.Credit(ctx, tx, enums.WalletKindClient, clientWallet.ID, wallet.Entry{
			Amount:  input.Amount,
			Type:    enums.WalletTransactionTypeRefundCredit,
			OrderID: &orderID,
			Metadata: map[string]string{
				"reason": input.Reason,
			},
		}, true); err != nil {
			return err
		}
		result.CreditedToClient = input.Amount

		return s.audit.Record(ctx, tx, audit.Event{
			Action:      enums.AuditActionRefundRecorded,
			ActorID:     input.ActorID,
			SubjectType: "order",
			SubjectID:   orderID,
			Metadata: map[string]any{
				"amount":               input.Amount,
				"reversed_from_hold":   result.ReversedFromHold,
				"debited_withdrawable": result.DebitedWithdrawable,
				"deduction_recorded":   result.DeductionRecorded,
				"returned_to_cook":     result.ReturnedToCook,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, fmt.Sprintf("refund of %d executed for order %s", input.Amount, input.OrderID))
	return &result, nil
}
