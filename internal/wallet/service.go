package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mbongotech/cookpay-backend/pkg/db"
	"github.com/mbongotech/cookpay-backend/pkg/db/models"
	"github.com/mbongotech/cookpay-backend/pkg/enums"
	apperrors "github.com/mbongotech/cookpay-backend/pkg/errors"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
	"github.com/mbongotech/cookpay-backend/pkg/pagination"
)

// Entry describes one ledger movement applied through the service. Amount is
// always positive; the operation decides the sign of the stored row.
type Entry struct {
	Amount         int64
	Type           enums.WalletTransactionType
	OrderID        *uuid.UUID
	WithdrawableAt *time.Time
	Metadata       any
}

// Service is the wallet ledger. Every balance mutation happens through it so
// the invariant total == withdrawable + unwithdrawable survives each write and
// every movement leaves a transaction row. Callers run mutations inside a
// database transaction and pass it in; the row lock taken on the wallet keeps
// concurrent writers serialized.
type Service interface {
	GetOrCreateCookWallet(ctx context.Context, tx *gorm.DB, tenantID, cookID uuid.UUID) (*models.CookWallet, error)
	GetOrCreateClientWallet(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) (*models.ClientWallet, error)
	GetCookWallet(ctx context.Context, id uuid.UUID) (*models.CookWallet, error)
	GetCookWalletByTenantCook(ctx context.Context, tenantID, cookID uuid.UUID) (*models.CookWallet, error)
	GetClientWallet(ctx context.Context, clientID uuid.UUID) (*models.ClientWallet, error)

	Credit(ctx context.Context, tx *gorm.DB, kind enums.WalletKind, walletID uuid.UUID, entry Entry, withdrawable bool) (*models.WalletTransaction, error)
	Debit(ctx context.Context, tx *gorm.DB, kind enums.WalletKind, walletID uuid.UUID, entry Entry) (*models.WalletTransaction, error)
	DebitHeld(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, entry Entry) (*models.WalletTransaction, error)
	Promote(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, amount int64) error

	ListTransactions(ctx context.Context, kind enums.WalletKind, walletID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, string, error)
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

// NewService validates dependencies and constructs the ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("wallet service requires a repository")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("wallet service requires a logger")
	}
	return &service{repo: params.Repo, logger: params.Logger}, nil
}

func (s *service) GetOrCreateCookWallet(ctx context.Context, tx *gorm.DB, tenantID, cookID uuid.UUID) (*models.CookWallet, error) {
	if tenantID == uuid.Nil || cookID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "tenant id and cook id are required")
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindCookWalletByTenantCook(ctx, tenantID, cookID)
	if err == nil {
		return wallet, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "load cook wallet")
	}

	wallet = &models.CookWallet{
		TenantID: tenantID,
		CookID:   cookID,
		Currency: enums.CurrencyXAF,
	}
	if err := repo.CreateCookWallet(ctx, wallet); err != nil {
		if db.IsUniqueViolation(err, "") {
			wallet, err = repo.FindCookWalletByTenantCook(ctx, tenantID, cookID)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeInternal, err, "load cook wallet after race")
			}
			return wallet, nil
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "create cook wallet")
	}
	return wallet, nil
}

func (s *service) GetOrCreateClientWallet(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) (*models.ClientWallet, error) {
	if clientID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "client id is required")
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindClientWalletByClient(ctx, clientID)
	if err == nil {
		return wallet, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "load client wallet")
	}

	wallet = &models.ClientWallet{
		ClientID: clientID,
		Currency: enums.CurrencyXAF,
	}
	if err := repo.CreateClientWallet(ctx, wallet); err != nil {
		if db.IsUniqueViolation(err, "") {
			wallet, err = repo.FindClientWalletByClient(ctx, clientID)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeInternal, err, "load client wallet after race")
			}
			return wallet, nil
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "create client wallet")
	}
	return wallet, nil
}

func (s *service) GetCookWallet(ctx context.Context, id uuid.UUID) (*models.CookWallet, error) {
	wallet, err := s.repo.FindCookWallet(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "cook wallet not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "load cook wallet")
	}
	return wallet, nil
}

func (s *service) GetCookWalletByTenantCook(ctx context.Context, tenantID, cookID uuid.UUID) (*models.CookWallet, error) {
	wallet, err := s.repo.FindCookWalletByTenantCook(ctx, tenantID, cookID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "cook wallet not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "load cook wallet")
	}
	return wallet, nil
}

func (s *service) GetClientWallet(ctx context.Context, clientID uuid.UUID) (*models.ClientWallet, error) {
	wallet, err := s.repo.FindClientWalletByClient(ctx, clientID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "client wallet not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "load client wallet")
	}
	return wallet, nil
}

// balances is the common shape of the two wallet rows while mutating them.
type balances struct {
	total          int64
	withdrawable   int64
	unwithdrawable int64
}

// Credit adds funds to a wallet. When withdrawable is false the amount lands
// in the held bucket and entry.WithdrawableAt records when it matures.
func (s *service) Credit(ctx context.Context, tx *gorm.DB, kind enums.WalletKind, walletID uuid.UUID, entry Entry, withdrawable bool) (*models.WalletTransaction, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	return s.mutate(ctx, tx, kind, walletID, func(b *balances) (int64, error) {
		b.total += entry.Amount
		if withdrawable {
			b.withdrawable += entry.Amount
		} else {
			b.unwithdrawable += entry.Amount
		}
		return entry.Amount, nil
	}, entry, withdrawable)
}

// Debit removes funds from the withdrawable bucket. A debit exceeding the
// withdrawable balance fails with INSUFFICIENT_FUNDS and writes nothing.
func (s *service) Debit(ctx context.Context, tx *gorm.DB, kind enums.WalletKind, walletID uuid.UUID, entry Entry) (*models.WalletTransaction, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	return s.mutate(ctx, tx, kind, walletID, func(b *balances) (int64, error) {
		if entry.Amount > b.withdrawable {
			return 0, apperrors.New(apperrors.CodeInsufficientFunds, "debit exceeds withdrawable balance").
				WithDetails(map[string]int64{
					"requested":    entry.Amount,
					"withdrawable": b.withdrawable,
				})
		}
		b.total -= entry.Amount
		b.withdrawable -= entry.Amount
		return -entry.Amount, nil
	}, entry, true)
}

// DebitHeld removes funds from the unwithdrawable bucket of a cook wallet.
// Used for commission capture, clearance reversals and deduction settlement.
func (s *service) DebitHeld(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, entry Entry) (*models.WalletTransaction, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	return s.mutate(ctx, tx, enums.WalletKindCook, walletID, func(b *balances) (int64, error) {
		if entry.Amount > b.unwithdrawable {
			return 0, apperrors.New(apperrors.CodeStateConflict, "debit exceeds held balance").
				WithDetails(map[string]int64{
					"requested": entry.Amount,
					"held":      b.unwithdrawable,
				})
		}
		b.total -= entry.Amount
		b.unwithdrawable -= entry.Amount
		return -entry.Amount, nil
	}, entry, false)
}

// Promote moves matured funds from held to withdrawable on a cook wallet.
// The total does not change so no ledger row is written; the clearance row
// records the maturation.
func (s *service) Promote(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return apperrors.New(apperrors.CodeValidation, "promote amount must be positive")
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindCookWalletForUpdate(ctx, walletID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperrors.New(apperrors.CodeNotFound, "cook wallet not found")
		}
		return apperrors.Wrap(apperrors.CodeInternal, err, "lock cook wallet")
	}

	if amount > wallet.UnwithdrawableBalance {
		return apperrors.New(apperrors.CodeStateConflict, "promote exceeds held balance").
			WithDetails(map[string]int64{
				"requested": amount,
				"held":      wallet.UnwithdrawableBalance,
			})
	}

	if err := repo.UpdateCookWalletBalances(ctx, wallet.ID,
		wallet.TotalBalance,
		wallet.WithdrawableBalance+amount,
		wallet.UnwithdrawableBalance-amount,
	); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "promote held funds")
	}
	return nil
}

func (s *service) ListTransactions(ctx context.Context, kind enums.WalletKind, walletID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, string, error) {
	if !kind.IsValid() {
		return nil, "", apperrors.New(apperrors.CodeValidation, "invalid wallet kind")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.ListTransactions(ctx, ListTransactionsQuery{
		WalletKind: kind,
		WalletID:   walletID,
		Limit:      params.Limit,
		Cursor:     cursor,
	})
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInternal, err, "list wallet transactions")
	}

	nextCursor := ""
	if next != nil {
		nextCursor = pagination.EncodeCursor(*next)
	}
	return rows, nextCursor, nil
}

// mutate locks the wallet row, applies the balance change and appends the
// ledger entry, all on the caller's transaction.
func (s *service) mutate(
	ctx context.Context,
	tx *gorm.DB,
	kind enums.WalletKind,
	walletID uuid.UUID,
	apply func(*balances) (int64, error),
	entry Entry,
	withdrawable bool,
) (*models.WalletTransaction, error) {
	repo := s.repo.WithTx(tx)

	var b balances
	switch kind {
	case enums.WalletKindCook:
		wallet, err := repo.FindCookWalletForUpdate(ctx, walletID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, apperrors.New(apperrors.CodeNotFound, "cook wallet not found")
			}
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "lock cook wallet")
		}
		b = balances{wallet.TotalBalance, wallet.WithdrawableBalance, wallet.UnwithdrawableBalance}
	case enums.WalletKindClient:
		wallet, err := repo.FindClientWalletForUpdate(ctx, walletID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, apperrors.New(apperrors.CodeNotFound, "client wallet not found")
			}
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "lock client wallet")
		}
		b = balances{wallet.TotalBalance, wallet.WithdrawableBalance, wallet.UnwithdrawableBalance}
	default:
		return nil, apperrors.New(apperrors.CodeValidation, "invalid wallet kind")
	}

	before := b.total
	signed, err := apply(&b)
	if err != nil {
		return nil, err
	}

	if b.total < 0 || b.withdrawable < 0 || b.unwithdrawable < 0 || b.total != b.withdrawable+b.unwithdrawable {
		return nil, apperrors.New(apperrors.CodeInternal, "wallet balance invariant violated").
			WithDetails(map[string]int64{
				"total":          b.total,
				"withdrawable":   b.withdrawable,
				"unwithdrawable": b.unwithdrawable,
			})
	}

	switch kind {
	case enums.WalletKindCook:
		err = repo.UpdateCookWalletBalances(ctx, walletID, b.total, b.withdrawable, b.unwithdrawable)
	case enums.WalletKindClient:
		err = repo.UpdateClientWalletBalances(ctx, walletID, b.total, b.withdrawable, b.unwithdrawable)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "update wallet balances")
	}

	var metadata json.RawMessage
	if entry.Metadata != nil {
		encoded, mErr := json.Marshal(entry.Metadata)
		if mErr != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, mErr, "encode transaction metadata")
		}
		metadata = encoded
	}

	txn := &models.WalletTransaction{
		WalletKind:     kind,
		WalletID:       walletID,
		OrderID:        entry.OrderID,
		Type:           entry.Type,
		Amount:         signed,
		BalanceBefore:  before,
		BalanceAfter:   b.total,
		IsWithdrawable: withdrawable,
		WithdrawableAt: entry.WithdrawableAt,
		Status:         enums.WalletTransactionStatusCompleted,
		Metadata:       metadata,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "append wallet transaction")
	}

	s.logger.Info(s.logger.WithWalletID(ctx, walletID.String()), fmt.Sprintf("ledger %s %+d", entry.Type, signed))
	return txn, nil
}

func validateEntry(entry Entry) error {
	if entry.Amount <= 0 {
		return apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}
	if !entry.Type.IsValid() {
		return apperrors.New(apperrors.CodeValidation, "invalid transaction type")
	}
	return nil
}
