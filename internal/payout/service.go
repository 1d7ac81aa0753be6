package payout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mbongotech/cookpay-backend/internal/audit"
	"github.com/mbongotech/cookpay-backend/internal/wallet"
	"github.com/mbongotech/cookpay-backend/pkg/db"
	"github.com/mbongotech/cookpay-backend/pkg/db/models"
	"github.com/mbongotech/cookpay-backend/pkg/enums"
	apperrors "github.com/mbongotech/cookpay-backend/pkg/errors"
	"github.com/mbongotech/cookpay-backend/pkg/gateway"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
	"github.com/mbongotech/cookpay-backend/pkg/metrics"
)

const defaultMaxRetries = 3

// WithdrawalInput describes a cook-initiated cash-out.
type WithdrawalInput struct {
	CookWalletID      uuid.UUID
	TenantID          uuid.UUID
	Amount            int64
	MobileMoneyNumber string
	PaymentMethod     string
	ActorID           *uuid.UUID
}

// WithdrawalResult reports the outcome of the initial transfer attempt.
type WithdrawalResult struct {
	Withdrawal *models.WithdrawalRequest
	// Task is set when the transfer did not complete and a payout task now
	// tracks the owed funds.
	Task *models.PayoutTask
}

// Service owns withdrawals and the payout task lifecycle. Funds are debited
// before the provider is called; a transfer that does not visibly succeed
// leaves a pending payout task so the owed money is never silently dropped.
type Service interface {
	RequestWithdrawal(ctx context.Context, input WithdrawalInput) (*WithdrawalResult, error)
	Retry(ctx context.Context, taskID uuid.UUID, actorID uuid.UUID) (*models.PayoutTask, error)
	MarkManuallyCompleted(ctx context.Context, taskID uuid.UUID, actorID uuid.UUID, referenceNumber, notes string) (*models.PayoutTask, error)
	ReconcileProviderSuccess(ctx context.Context, withdrawalID uuid.UUID, providerReference string) error
	GetTask(ctx context.Context, taskID uuid.UUID) (*models.PayoutTask, error)
	ListPendingTasks(ctx context.Context, limit int) ([]models.PayoutTask, error)
	CountPendingTasks(ctx context.Context) (int64, error)
	ListWithdrawals(ctx context.Context, cookWalletID uuid.UUID, limit int) ([]models.WithdrawalRequest, error)
}

// ServiceParams collects the service dependencies.
type ServiceParams struct {
	Repo       Repository
	DB         *db.Client
	Wallets    wallet.Service
	Gateway    gateway.TransferClient
	Audit      audit.Sink
	Logger     *logger.Logger
	Metrics    *metrics.PayoutMetrics
	MaxRetries int
	Now        func() time.Time
}

type service struct {
	repo       Repository
	db         *db.Client
	wallets    wallet.Service
	gateway    gateway.TransferClient
	audit      audit.Sink
	logger     *logger.Logger
	metrics    *metrics.PayoutMetrics
	maxRetries int
	now        func() time.Time
}

// NewService validates dependencies and constructs the payout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payout service requires a repository")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("payout service requires a database")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("payout service requires the wallet service")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payout service requires the transfer gateway")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("payout service requires an audit sink")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("payout service requires a logger")
	}
	if params.MaxRetries <= 0 {
		params.MaxRetries = defaultMaxRetries
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:       params.Repo,
		db:         params.DB,
		wallets:    params.Wallets,
		gateway:    params.Gateway,
		audit:      params.Audit,
		logger:     params.Logger,
		metrics:    params.Metrics,
		maxRetries: params.MaxRetries,
		now:        params.Now,
	}, nil
}

// RequestWithdrawal debits the cook's withdrawable balance, records the
// withdrawal and attempts the transfer. The debit commits before the provider
// is called; if the transfer fails or the outcome is unknown, a pending
// payout task carries the owed amount forward.
func (s *service) RequestWithdrawal(ctx context.Context, input WithdrawalInput) (*WithdrawalResult, error) {
	if input.CookWalletID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "cook wallet id is required")
	}
	if input.Amount <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "withdrawal amount must be positive")
	}
	if strings.TrimSpace(input.MobileMoneyNumber) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "mobile money number is required")
	}
	if strings.TrimSpace(input.PaymentMethod) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "payment method is required")
	}

	var withdrawal *models.WithdrawalRequest
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		withdrawal = &models.WithdrawalRequest{
			CookWalletID:      input.CookWalletID,
			TenantID:          input.TenantID,
			Amount:            input.Amount,
			Currency:          enums.CurrencyXAF,
			MobileMoneyNumber: strings.TrimSpace(input.MobileMoneyNumber),
			PaymentMethod:     strings.TrimSpace(input.PaymentMethod),
			Status:            enums.WithdrawalStatusProcessing,
		}
		if err := s.repo.WithTx(tx).CreateWithdrawal(ctx, withdrawal); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "create withdrawal request")
		}

		withdrawalID := withdrawal.ID
		if _, err := s.wallets.Debit(ctx, tx, enums.WalletKindCook, input.CookWalletID, wallet.Entry{
			Amount: input.Amount,
			Type:   enums.WalletTransactionTypeWithdrawal,
			Metadata: map[string]string{
				"withdrawal_request_id": withdrawalID.String(),
				"mobile_money_number":   withdrawal.MobileMoneyNumber,
			},
		}); err != nil {
			return err
		}

		return s.audit.Record(ctx, tx, audit.Event{
			Action:      enums.AuditActionWithdrawalRequested,
			ActorID:     input.ActorID,
			SubjectType: "withdrawal_request",
			SubjectID:   withdrawalID,
			Metadata:    map[string]int64{"amount": input.Amount},
		})
	})
	if err != nil {
		return nil, err
	}

	// The withdrawal id doubles as the provider idempotency key so a retry of
	// the same withdrawal can never double-pay.
	transfer, transferErr := s.gateway.InitiateTransfer(ctx, gateway.TransferRequest{
		Amount:             input.Amount,
		Currency:           string(enums.CurrencyXAF),
		DestinationAccount: withdrawal.MobileMoneyNumber,
		PaymentMethod:      withdrawal.PaymentMethod,
		IdempotencyKey:     withdrawal.ID.String(),
	})

	if transferErr == nil && transfer.Status == gateway.TransferStatusSuccess {
		err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			row, err := repo.FindWithdrawalForUpdate(ctx, withdrawal.ID)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "lock withdrawal request")
			}
			row.Status = enums.WithdrawalStatusCompleted
			if transfer.ProviderReference != "" {
				ref := transfer.ProviderReference
				row.ProviderReference = &ref
			}
			if err := repo.UpdateWithdrawal(ctx, row); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "complete withdrawal request")
			}
			withdrawal = row
			return nil
		})
		if err != nil {
			return nil, err
		}
		s.logger.Info(ctx, fmt.Sprintf("withdrawal %s paid out immediately", withdrawal.ID))
		return &WithdrawalResult{Withdrawal: withdrawal}, nil
	}

	failureReason := "transfer outcome unknown"
	var providerResponse []byte
	if transferErr != nil {
		failureReason = transferErr.Error()
	} else {
		failureReason = transfer.FailureReason
		providerResponse = transfer.RawResponse
	}

	var task *models.PayoutTask
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindWithdrawalForUpdate(ctx, withdrawal.ID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "lock withdrawal request")
		}
		row.Status = enums.WithdrawalStatusFailed
		reason := failureReason
		row.FailureReason = &reason
		if err := repo.UpdateWithdrawal(ctx, row); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "fail withdrawal request")
		}
		withdrawal = row

		task = &models.PayoutTask{
			WithdrawalRequestID: row.ID,
			CookWalletID:        row.CookWalletID,
			Amount:              row.Amount,
			Currency:            row.Currency,
			MobileMoneyNumber:   row.MobileMoneyNumber,
			PaymentMethod:       row.PaymentMethod,
			Status:              enums.PayoutTaskStatusPending,
			FailureReason:       &reason,
			ProviderResponse:    providerResponse,
		}
		if err := repo.CreateTask(ctx, task); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "create payout task")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn(ctx, fmt.Sprintf("withdrawal %s did not complete, payout task %s opened", withdrawal.ID, task.ID))
	return &WithdrawalResult{Withdrawal: withdrawal, Task: task}, nil
}

// Retry re-attempts a failed transfer. The task row stays locked across the
// provider call, which is bounded by the transfer timeout, so concurrent
// retries of the same task serialize instead of double-paying. The retry
// counter increments even when the outcome is unknown; an attempt that may
// have reached the provider must be counted.
func (s *service) Retry(ctx context.Context, taskID uuid.UUID, actorID uuid.UUID) (*models.PayoutTask, error) {
	var task *models.PayoutTask
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		row, err := repo.FindTaskForUpdate(ctx, taskID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.New(apperrors.CodeNotFound, "payout task not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "lock payout task")
		}
		if row.Status.IsTerminal() {
			return apperrors.New(apperrors.CodeStateConflict, "payout task already resolved")
		}
		if row.RetryCount >= s.maxRetries {
			return apperrors.New(apperrors.CodeRetryExhausted, "automatic retries exhausted, complete manually").
				WithDetails(map[string]int{"retry_count": row.RetryCount, "max_retries": s.maxRetries})
		}

		now := s.now()
		row.RetryCount++
		row.LastRetryAt = &now

		transfer, transferErr := s.gateway.InitiateTransfer(ctx, gateway.TransferRequest{
			Amount:             row.Amount,
			Currency:           string(row.Currency),
			DestinationAccount: row.MobileMoneyNumber,
			PaymentMethod:      row.PaymentMethod,
			IdempotencyKey:     row.WithdrawalRequestID.String(),
		})

		outcome := "failed"
		switch {
		case transferErr == nil && transfer.Status == gateway.TransferStatusSuccess:
			outcome = "success"
			completedAt := now
			row.Status = enums.PayoutTaskStatusCompleted
			row.CompletedAt = &completedAt
			row.FailureReason = nil
			if transfer.ProviderReference != "" {
				ref := transfer.ProviderReference
				row.ProviderReference = &ref
			}
			row.ProviderResponse = transfer.RawResponse

			if err := s.completeWithdrawal(ctx, tx, row.WithdrawalRequestID, transfer.ProviderReference); err != nil {
				return err
			}
		case transferErr != nil:
			outcome = "unknown"
			reason := transferErr.Error()
			row.FailureReason = &reason
		default:
			reason := transfer.FailureReason
			row.FailureReason = &reason
			row.ProviderResponse = transfer.RawResponse
		}

		if err := repo.UpdateTask(ctx, row); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "update payout task")
		}
		task = row

		s.metrics.IncRetry(outcome)
		return s.audit.Record(ctx, tx, audit.Event{
			Action:      enums.AuditActionPayoutRetried,
			ActorID:     &actorID,
			SubjectType: "payout_task",
			SubjectID:   row.ID,
			Metadata: map[string]any{
				"outcome":     outcome,
				"retry_count": row.RetryCount,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// MarkManuallyCompleted resolves a task an operator paid outside the system.
// Available at any retry count while the task is pending; the external
// reference number is mandatory.
func (s *service) MarkManuallyCompleted(ctx context.Context, taskID uuid.UUID, actorID uuid.UUID, referenceNumber, notes string) (*models.PayoutTask, error) {
	reference := strings.TrimSpace(referenceNumber)
	if reference == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "reference number is required")
	}
	if actorID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "actor id is required")
	}

	var task *models.PayoutTask
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		row, err := repo.FindTaskForUpdate(ctx, taskID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.New(apperrors.CodeNotFound, "payout task not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "lock payout task")
		}
		if row.Status.IsTerminal() {
			return apperrors.New(apperrors.CodeStateConflict, "payout task already resolved")
		}

		now := s.now()
		row.Status = enums.PayoutTaskStatusManuallyCompleted
		row.ReferenceNumber = &reference
		row.CompletedBy = &actorID
		row.CompletedAt = &now
		if trimmed := strings.TrimSpace(notes); trimmed != "" {
			row.Notes = &trimmed
		}
		if err := repo.UpdateTask(ctx, row); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "update payout task")
		}
		task = row

		if err := s.completeWithdrawal(ctx, tx, row.WithdrawalRequestID, reference); err != nil {
			return err
		}

		return s.audit.Record(ctx, tx, audit.Event{
			Action:      enums.AuditActionPayoutManuallyCompleted,
			ActorID:     &actorID,
			SubjectType: "payout_task",
			SubjectID:   row.ID,
			Metadata:    map[string]string{"reference_number": reference},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, fmt.Sprintf("payout task %s manually completed", taskID))
	return task, nil
}

// ReconcileProviderSuccess handles a late success webhook for a transfer
// whose outcome was locally unknown. A pending task is completed in place; a
// task already resolved is left untouched and the signal recorded, so a
// manual completion is never overwritten.
func (s *service) ReconcileProviderSuccess(ctx context.Context, withdrawalID uuid.UUID, providerReference string) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		row, err := repo.FindTaskByWithdrawalForUpdate(ctx, withdrawalID)
		if err != nil {
			if err != gorm.ErrRecordNotFound {
				return apperrors.Wrap(apperrors.CodeInternal, err, "lock payout task")
			}

			// No task means the initial attempt is still in flight or already
			// succeeded; completing the withdrawal itself is enough.
			withdrawal, wErr := repo.FindWithdrawalForUpdate(ctx, withdrawalID)
			if wErr != nil {
				if wErr == gorm.ErrRecordNotFound {
					return apperrors.New(apperrors.CodeNotFound, "withdrawal not found")
				}
				return apperrors.Wrap(apperrors.CodeInternal, wErr, "lock withdrawal request")
			}
			if withdrawal.Status == enums.WithdrawalStatusCompleted {
				return nil
			}
			withdrawal.Status = enums.WithdrawalStatusCompleted
			if providerReference != "" {
				ref := providerReference
				withdrawal.ProviderReference = &ref
			}
			if err := repo.UpdateWithdrawal(ctx, withdrawal); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "complete withdrawal request")
			}
			return s.audit.Record(ctx, tx, audit.Event{
				Action:      enums.AuditActionPayoutWebhookReconciled,
				SubjectType: "withdrawal_request",
				SubjectID:   withdrawalID,
				Metadata:    map[string]string{"provider_reference": providerReference},
			})
		}

		if row.Status.IsTerminal() {
			return s.audit.Record(ctx, tx, audit.Event{
				Action:      enums.AuditActionPayoutWebhookDuplicate,
				SubjectType: "payout_task",
				SubjectID:   row.ID,
				Metadata:    map[string]string{"provider_reference": providerReference},
			})
		}

		now := s.now()
		row.Status = enums.PayoutTaskStatusCompleted
		row.CompletedAt = &now
		row.FailureReason = nil
		if providerReference != "" {
			ref := providerReference
			row.ProviderReference = &ref
		}
		if err := repo.UpdateTask(ctx, row); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "update payout task")
		}

		if err := s.completeWithdrawal(ctx, tx, row.WithdrawalRequestID, providerReference); err != nil {
			return err
		}

		return s.audit.Record(ctx, tx, audit.Event{
			Action:      enums.AuditActionPayoutWebhookReconciled,
			SubjectType: "payout_task",
			SubjectID:   row.ID,
			Metadata:    map[string]string{"provider_reference": providerReference},
		})
	})
}

func (s *service) completeWithdrawal(ctx context.Context, tx *gorm.DB, withdrawalID uuid.UUID, providerReference string) error {
	repo := s.repo.WithTx(tx)
	withdrawal, err := repo.FindWithdrawalForUpdate(ctx, withdrawalID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "lock withdrawal request")
	}
	withdrawal.Status = enums.WithdrawalStatusCompleted
	withdrawal.FailureReason = nil
	if providerReference != "" {
		ref := providerReference
		withdrawal.ProviderReference = &ref
	}
	if err := repo.UpdateWithdrawal(ctx, withdrawal); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "complete withdrawal request")
	}
	return nil
}

func (s *service) GetTask(ctx context.Context, taskID uuid.UUID) (*models.PayoutTask, error) {
	row, err := s.repo.FindTask(ctx, taskID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "payout task not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "load payout task")
	}
	return row, nil
}

func (s *service) ListPendingTasks(ctx context.Context, limit int) ([]models.PayoutTask, error) {
	rows, err := s.repo.ListPendingTasks(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "list payout tasks")
	}
	return rows, nil
}

func (s *service) CountPendingTasks(ctx context.Context) (int64, error) {
	count, err := s.repo.CountPendingTasks(ctx)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, err, "count payout tasks")
	}
	return count, nil
}

func (s *service) ListWithdrawals(ctx context.Context, cookWalletID uuid.UUID, limit int) ([]models.WithdrawalRequest, error) {
	rows, err := s.repo.ListWithdrawalsByWallet(ctx, cookWalletID, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "list withdrawals")
	}
	return rows, nil
}
