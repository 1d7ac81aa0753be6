package clearance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/mbongotech/cookpay-backend/internal/audit"
	"github.com/mbongotech/cookpay-backend/internal/commission"
	"github.com/mbongotech/cookpay-backend/internal/deduction"
	"github.com/mbongotech/cookpay-backend/internal/wallet"
	"github.com/mbongotech/cookpay-backend/pkg/config"
	"github.com/mbongotech/cookpay-backend/pkg/db"
	"github.com/mbongotech/cookpay-backend/pkg/db/models"
	"github.com/mbongotech/cookpay-backend/pkg/enums"
	apperrors "github.com/mbongotech/cookpay-backend/pkg/errors"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
)

// OpenInput describes a completed order entering the hold window.
type OpenInput struct {
	OrderID     uuid.UUID
	TenantID    uuid.UUID
	CookID      uuid.UUID
	GrossAmount int64
	// CompletedAt defaults to now when zero. The hold window counts from it.
	CompletedAt time.Time
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Scanned int
	Cleared int
	Skipped int
}

// Service runs the order clearance lifecycle: funds enter a cook wallet held,
// mature after the hold window, and are released by the sweep. Pause stops
// the clock for a disputed order; cancel reverses the held funds.
type Service interface {
	Open(ctx context.Context, input OpenInput) (*models.OrderClearance, error)
	Pause(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID) (*models.OrderClearance, error)
	Resume(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID) (*models.OrderClearance, error)
	Cancel(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actorID *uuid.UUID, reason string) (*models.OrderClearance, error)
	Sweep(ctx context.Context) (*SweepResult, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderClearance, error)
	ListByWallet(ctx context.Context, cookWalletID uuid.UUID, limit int) ([]models.OrderClearance, error)
}

// ServiceParams collects the service dependencies.
type ServiceParams struct {
	Repo        Repository
	DB          *db.Client
	Wallets     wallet.Service
	Deductions  deduction.Service
	Commissions commission.Service
	Audit       audit.Sink
	Logger      *logger.Logger
	Settlement  config.SettlementConfig
	Now         func() time.Time
}

type service struct {
	repo        Repository
	db          *db.Client
	wallets     wallet.Service
	deductions  deduction.Service
	commissions commission.Service
	audit       audit.Sink
	logger      *logger.Logger
	settlement  config.SettlementConfig
	now         func() time.Time
}

// NewService validates dependencies and constructs the clearance service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("clearance service requires a repository")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("clearance service requires a database")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("clearance service requires the wallet service")
	}
	if params.Deductions == nil {
		return nil, fmt.Errorf("clearance service requires the deduction service")
	}
	if params.Commissions == nil {
		return nil, fmt.Errorf("clearance service requires the commission service")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("clearance service requires an audit sink")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("clearance service requires a logger")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:        params.Repo,
		db:          params.DB,
		wallets:     params.Wallets,
		deductions:  params.Deductions,
		commissions: params.Commissions,
		audit:       params.Audit,
		logger:      params.Logger,
		settlement:  params.Settlement,
		now:         params.Now,
	}, nil
}

// Open credits the gross payment into the cook wallet's held bucket, captures
// the platform commission immediately at the tenant's current rate, and opens
// the clearance for the net amount. The commission split is frozen on the row;
// later rate changes never touch it.
func (s *service) Open(ctx context.Context, input OpenInput) (*models.OrderClearance, error) {
	if input.OrderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id is required")
	}
	if input.TenantID == uuid.Nil || input.CookID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "tenant id and cook id are required")
	}
	if input.GrossAmount <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "gross amount must be positive")
	}

	completedAt := input.CompletedAt
	if completedAt.IsZero() {
		completedAt = s.now()
	}
	holdHours := s.settlement.HoldHours
	if holdHours <= 0 {
		holdHours = 3
	}
	withdrawableAt := completedAt.Add(time.Duration(holdHours) * time.Hour)

	var row *models.OrderClearance
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindByOrderID(ctx, input.OrderID); err == nil {
			return apperrors.New(apperrors.CodeConflict, "order already has a clearance")
		} else if err != gorm.ErrRecordNotFound {
			return apperrors.Wrap(apperrors.CodeInternal, err, "check existing clearance")
		}

		cookWallet, err := s.wallets.GetOrCreateCookWallet(ctx, tx, input.TenantID, input.CookID)
		if err != nil {
			return err
		}

		rate, err := s.commissions.CurrentRate(ctx, tx, input.TenantID)
		if err != nil {
			return err
		}
		commissionAmount, netAmount := commission.Split(input.GrossAmount, rate)

		orderID := input.OrderID
		if _, err := s.wallets.Credit(ctx, tx, enums.WalletKindCook, cookWallet.ID, wallet.Entry{
			Amount:         input.GrossAmount,
			Type:           enums.WalletTransactionTypePaymentCredit,
			OrderID:        &orderID,
			WithdrawableAt: &withdrawableAt,
		}, false); err != nil {
			return err
		}
		if commissionAmount > 0 {
			if _, err := s.wallets.DebitHeld(ctx, tx, cookWallet.ID, wallet.Entry{
				Amount:  commissionAmount,
				Type:    enums.WalletTransactionTypeCommission,
				OrderID: &orderID,
				Metadata: map[string]string{
					"commission_rate": rate.String(),
				},
			}); err != nil {
				return err
			}
		}

		row = &models.OrderClearance{
			OrderID:          input.OrderID,
			TenantID:         input.TenantID,
			CookWalletID:     cookWallet.ID,
			GrossAmount:      input.GrossAmount,
			CommissionRate:   rate,
			CommissionAmount: commissionAmount,
			Amount:           netAmount,
			HoldHours:        holdHours,
			CompletedAt:      completedAt,
			WithdrawableAt:   withdrawableAt,
		}
		if err := repo.Create(ctx, row); err != nil {
			if db.IsUniqueViolation(err, "") {
				return apperrors.New(apperrors.CodeConflict, "order already has a clearance")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "create clearance")
		}

		return s.audit.Record(ctx, tx, audit.Event{
			Action:      enums.AuditActionClearanceOpened,
			SubjectType: "order_clearance",
			SubjectID:   row.ID,
			Metadata: map[string]any{
				"order_id":          input.OrderID.String(),
				"gross_amount":      input.GrossAmount,
				"commission_amount": commissionAmount,
				"net_amount":        netAmount,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithTenantID(ctx, input.TenantID.String()),
		fmt.Sprintf("clearance opened for order %s, net %d held", input.OrderID, row.Amount))
	return row, nil
}

// Pause freezes the hold clock for a disputed order. The remaining time is
// stored so resume continues where the clock stopped.
func (s *service) Pause(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID) (*models.OrderClearance, error) {
	var row *models.OrderClearance
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := repo.FindByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.New(apperrors.CodeNotFound, "clearance not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "lock clearance")
		}
		if found.IsCleared || found.IsCancelled {
			return apperrors.New(apperrors.CodeStateConflict, "clearance is terminal")
		}
		if found.IsPaused {
			return apperrors.New(apperrors.CodeStateConflict, "clearance already paused")
		}

		now := s.now()
		remaining := int64(found.WithdrawableAt.Sub(now) / time.Second)
		if remaining < 0 {
			remaining = 0
		}

		found.IsPaused = true
		found.PausedAt = &now
		found.RemainingSecondsAtPause = &remaining
		if err := repo.Update(ctx, found); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "pause clearance")
		}
		row = found

		return s.audit.Record(ctx, tx, audit.Event{
			Action:      enums.AuditActionClearancePaused,
			ActorID:     &actorID,
			SubjectType: "order_clearance",
			SubjectID:   found.ID,
			Metadata:    map[string]int64{"remaining_seconds": remaining},
		})
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Resume restarts a paused clearance. The new maturity is now plus the time
// that remained when the clock was paused.
func (s *service) Resume(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID) (*models.OrderClearance, error) {
	var row *models.OrderClearance
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := repo.FindByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.New(apperrors.CodeNotFound, "clearance not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "lock clearance")
		}
		if !found.IsPaused {
			return apperrors.New(apperrors.CodeStateConflict, "clearance is not paused")
		}

		now := s.now()
		var remaining int64
		if found.RemainingSecondsAtPause != nil {
			remaining = *found.RemainingSecondsAtPause
		}

		found.IsPaused = false
		found.PausedAt = nil
		found.RemainingSecondsAtPause = nil
		found.WithdrawableAt = now.Add(time.Duration(remaining) * time.Second)
		if err := repo.Update(ctx, found); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "resume clearance")
		}
		row = found

		return s.audit.Record(ctx, tx, audit.Event{
			Action:      enums.AuditActionClearanceResumed,
			ActorID:     &actorID,
			SubjectType: "order_clearance",
			SubjectID:   found.ID,
			Metadata:    map[string]string{"withdrawable_at": found.WithdrawableAt.UTC().Format(time.RFC3339)},
		})
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Cancel reverses an uncleared clearance: the held net amount leaves the cook
// wallet and the row becomes terminal. Runs on the caller's transaction when
// one is supplied so refunds can compose with it.
func (s *service) Cancel(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actorID *uuid.UUID, reason string) (*models.OrderClearance, error) {
	run := func(tx *gorm.DB) (*models.OrderClearance, error) {
		repo := s.repo.WithTx(tx)

		found, err := repo.FindByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, apperrors.New(apperrors.CodeNotFound, "clearance not found")
			}
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "lock clearance")
		}
		if found.IsCleared {
			return nil, apperrors.New(apperrors.CodeStateConflict, "clearance already cleared")
		}
		if found.IsCancelled {
			return nil, apperrors.New(apperrors.CodeStateConflict, "clearance already cancelled")
		}

		if found.Amount > 0 {
			oID := found.OrderID
			if _, err := s.wallets.DebitHeld(ctx, tx, found.CookWalletID, wallet.Entry{
				Amount:  found.Amount,
				Type:    enums.WalletTransactionTypeClearanceReversal,
				OrderID: &oID,
				Metadata: map[string]string{
					"reason": reason,
				},
			}); err != nil {
				return nil, err
			}
		}

		found.IsCancelled = true
		found.IsPaused = false
		found.PausedAt = nil
		found.RemainingSecondsAtPause = nil
		if err := repo.Update(ctx, found); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "cancel clearance")
		}

		if err := s.audit.Record(ctx, tx, audit.Event{
			Action:      enums.AuditActionClearanceCancelled,
			ActorID:     actorID,
			SubjectType: "order_clearance",
			SubjectID:   found.ID,
			Metadata:    map[string]string{"reason": reason},
		}); err != nil {
			return nil, err
		}
		return found, nil
	}

	if tx != nil {
		return run(tx)
	}

	var row *models.OrderClearance
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		row, err = run(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Sweep releases every clearance whose hold window has elapsed. Each row is
// processed in its own transaction under a row lock with a state re-check, so
// concurrent sweeps and interleaved pauses or cancels are safe to race. Debt
// settlement runs before release: open deductions eat into the maturing funds
// and only the remainder becomes withdrawable.
func (s *service) Sweep(ctx context.Context) (*SweepResult, error) {
	batch := s.settlement.SweepBatchSize
	if batch <= 0 {
		batch = 200
	}

	now := s.now()
	due, err := s.repo.FindDue(ctx, now, batch)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "list due clearances")
	}

	result := &SweepResult{Scanned: len(due)}
	var errs error
	for _, candidate := range due {
		released, err := s.release(ctx, candidate.ID, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("clearance %s: %w", candidate.ID, err))
			continue
		}
		if released {
			result.Cleared++
		} else {
			result.Skipped++
		}
	}

	if result.Cleared > 0 || errs != nil {
		s.logger.Info(ctx, fmt.Sprintf("sweep released %d of %d due clearances", result.Cleared, result.Scanned))
	}
	return result, errs
}

func (s *service) release(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	released := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "lock clearance")
		}
		// Another sweep, a pause or a cancel may have won the race.
		if found.IsCleared || found.IsPaused || found.IsCancelled || found.WithdrawableAt.After(now) {
			return nil
		}

		net := found.Amount
		var settled int64
		if net > 0 {
			net, settled, err = s.deductions.SettleAgainst(ctx, tx, found.CookWalletID, found.Amount, now)
			if err != nil {
				return err
			}
		}

		oID := found.OrderID
		if settled > 0 {
			if _, err := s.wallets.DebitHeld(ctx, tx, found.CookWalletID, wallet.Entry{
				Amount:  settled,
				Type:    enums.WalletTransactionTypeDeductionSettlement,
				OrderID: &oID,
			}); err != nil {
				return err
			}
			if err := s.audit.Record(ctx, tx, audit.Event{
				Action:      enums.AuditActionDeductionSettled,
				SubjectType: "cook_wallet",
				SubjectID:   found.CookWalletID,
				Metadata:    map[string]int64{"settled_amount": settled},
			}); err != nil {
				return err
			}
		}
		if net > 0 {
			if err := s.wallets.Promote(ctx, tx, found.CookWalletID, net); err != nil {
				return err
			}
		}

		clearedAt := now
		found.IsCleared = true
		found.ClearedAt = &clearedAt
		if err := repo.Update(ctx, found); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "mark clearance cleared")
		}

		if err := s.audit.Record(ctx, tx, audit.Event{
			Action:      enums.AuditActionClearanceCleared,
			SubjectType: "order_clearance",
			SubjectID:   found.ID,
			Metadata: map[string]int64{
				"released_amount": net,
				"settled_amount":  settled,
			},
		}); err != nil {
			return err
		}

		released = true
		return nil
	})
	return released, err
}

func (s *service) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderClearance, error) {
	row, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "clearance not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "load clearance")
	}
	return row, nil
}

func (s *service) ListByWallet(ctx context.Context, cookWalletID uuid.UUID, limit int) ([]models.OrderClearance, error) {
	rows, err := s.repo.ListByWallet(ctx, cookWalletID, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "list clearances")
	}
	return rows, nil
}
