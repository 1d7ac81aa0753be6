package wallet

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mbongotech/cookpay-backend/pkg/db/models"
	"github.com/mbongotech/cookpay-backend/pkg/enums"
	pkgerrors "github.com/mbongotech/cookpay-backend/pkg/errors"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
	"github.com/mbongotech/cookpay-backend/pkg/pagination"
)

type stubWalletRepo struct {
	cook         *models.CookWallet
	client       *models.ClientWallet
	transactions []models.WalletTransaction

	createCookErr error
	findCalls     int
}

func (s *stubWalletRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubWalletRepo) CreateCookWallet(ctx context.Context, wallet *models.CookWallet) error {
	if s.createCookErr != nil {
		return s.createCookErr
	}
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	s.cook = wallet
	return nil
}

func (s *stubWalletRepo) FindCookWallet(ctx context.Context, id uuid.UUID) (*models.CookWallet, error) {
	if s.cook == nil || s.cook.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.cook, nil
}

func (s *stubWalletRepo) FindCookWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.CookWallet, error) {
	return s.FindCookWallet(ctx, id)
}

func (s *stubWalletRepo) FindCookWalletByTenantCook(ctx context.Context, tenantID, cookID uuid.UUID) (*models.CookWallet, error) {
	s.findCalls++
	if s.cook == nil || s.cook.TenantID != tenantID || s.cook.CookID != cookID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.cook, nil
}

func (s *stubWalletRepo) UpdateCookWalletBalances(ctx context.Context, id uuid.UUID, total, withdrawable, unwithdrawable int64) error {
	s.cook.TotalBalance = total
	s.cook.WithdrawableBalance = withdrawable
	s.cook.UnwithdrawableBalance = unwithdrawable
	return nil
}

func (s *stubWalletRepo) CreateClientWallet(ctx context.Context, wallet *models.ClientWallet) error {
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	s.client = wallet
	return nil
}

func (s *stubWalletRepo) FindClientWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.ClientWallet, error) {
	if s.client == nil || s.client.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.client, nil
}

func (s *stubWalletRepo) FindClientWalletByClient(ctx context.Context, clientID uuid.UUID) (*models.ClientWallet, error) {
	if s.client == nil || s.client.ClientID != clientID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.client, nil
}

func (s *stubWalletRepo) UpdateClientWalletBalances(ctx context.Context, id uuid.UUID, total, withdrawable, unwithdrawable int64) error {
	s.client.TotalBalance = total
	s.client.WithdrawableBalance = withdrawable
	s.client.UnwithdrawableBalance = unwithdrawable
	return nil
}

func (s *stubWalletRepo) CreateTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	s.transactions = append(s.transactions, *txn)
	return nil
}

func (s *stubWalletRepo) ListTransactions(ctx context.Context, query ListTransactionsQuery) ([]models.WalletTransaction, *pagination.Cursor, error) {
	return s.transactions, nil, nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func cookWalletFixture(total, withdrawable, held int64) *models.CookWallet {
	return &models.CookWallet{
		ID:                    uuid.New(),
		TenantID:              uuid.New(),
		CookID:                uuid.New(),
		TotalBalance:          total,
		WithdrawableBalance:   withdrawable,
		UnwithdrawableBalance: held,
		Currency:              enums.CurrencyXAF,
	}
}

func TestCreditHeldLandsInUnwithdrawable(t *testing.T) {
	repo := &stubWalletRepo{cook: cookWalletFixture(0, 0, 0)}
	svc := newTestService(t, repo)

	txn, err := svc.Credit(context.Background(), nil, enums.WalletKindCook, repo.cook.ID, Entry{
		Amount: 5000,
		Type:   enums.WalletTransactionTypePaymentCredit,
	}, false)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.cook.TotalBalance != 5000 || repo.cook.UnwithdrawableBalance != 5000 || repo.cook.WithdrawableBalance != 0 {
		t.Fatalf("unexpected balances %+v", repo.cook)
	}
	if txn.Amount != 5000 || txn.BalanceBefore != 0 || txn.BalanceAfter != 5000 {
		t.Fatalf("unexpected transaction %+v", txn)
	}
	if txn.IsWithdrawable {
		t.Fatal("held credit should not be flagged withdrawable")
	}
}

func TestDebitExceedingWithdrawableFails(t *testing.T) {
	repo := &stubWalletRepo{cook: cookWalletFixture(5000, 1000, 4000)}
	svc := newTestService(t, repo)

	_, err := svc.Debit(context.Background(), nil, enums.WalletKindCook, repo.cook.ID, Entry{
		Amount: 2000,
		Type:   enums.WalletTransactionTypeWithdrawal,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("expected INSUFFICIENT_FUNDS got %v", err)
	}
	if repo.cook.TotalBalance != 5000 || repo.cook.WithdrawableBalance != 1000 {
		t.Fatalf("balances must not move on a rejected debit, got %+v", repo.cook)
	}
	if len(repo.transactions) != 0 {
		t.Fatalf("no ledger row expected, got %d", len(repo.transactions))
	}
}

func TestDebitWritesNegativeLedgerRow(t *testing.T) {
	repo := &stubWalletRepo{cook: cookWalletFixture(5000, 5000, 0)}
	svc := newTestService(t, repo)

	txn, err := svc.Debit(context.Background(), nil, enums.WalletKindCook, repo.cook.ID, Entry{
		Amount: 3000,
		Type:   enums.WalletTransactionTypeWithdrawal,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if txn.Amount != -3000 {
		t.Fatalf("expected signed amount -3000 got %d", txn.Amount)
	}
	if repo.cook.TotalBalance != 2000 || repo.cook.WithdrawableBalance != 2000 {
		t.Fatalf("unexpected balances %+v", repo.cook)
	}
}

func TestDebitHeldExceedingHeldFails(t *testing.T) {
	repo := &stubWalletRepo{cook: cookWalletFixture(5000, 4000, 1000)}
	svc := newTestService(t, repo)

	_, err := svc.DebitHeld(context.Background(), nil, repo.cook.ID, Entry{
		Amount: 1500,
		Type:   enums.WalletTransactionTypeCommission,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT got %v", err)
	}
}

func TestPromoteMovesHeldWithoutLedgerRow(t *testing.T) {
	repo := &stubWalletRepo{cook: cookWalletFixture(5000, 1000, 4000)}
	svc := newTestService(t, repo)

	if err := svc.Promote(context.Background(), nil, repo.cook.ID, 4000); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.cook.TotalBalance != 5000 || repo.cook.WithdrawableBalance != 5000 || repo.cook.UnwithdrawableBalance != 0 {
		t.Fatalf("unexpected balances %+v", repo.cook)
	}
	if len(repo.transactions) != 0 {
		t.Fatalf("promote must not write a ledger row, got %d", len(repo.transactions))
	}
}

func TestPromoteExceedingHeldFails(t *testing.T) {
	repo := &stubWalletRepo{cook: cookWalletFixture(5000, 1000, 4000)}
	svc := newTestService(t, repo)

	err := svc.Promote(context.Background(), nil, repo.cook.ID, 4001)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT got %v", err)
	}
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	repo := &stubWalletRepo{cook: cookWalletFixture(0, 0, 0)}
	svc := newTestService(t, repo)

	_, err := svc.Credit(context.Background(), nil, enums.WalletKindCook, repo.cook.ID, Entry{
		Amount: 0,
		Type:   enums.WalletTransactionTypePaymentCredit,
	}, true)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR got %v", err)
	}
}

func TestGetOrCreateCookWalletRecoversFromRace(t *testing.T) {
	tenantID := uuid.New()
	cookID := uuid.New()
	existing := &models.CookWallet{
		ID:       uuid.New(),
		TenantID: tenantID,
		CookID:   cookID,
		Currency: enums.CurrencyXAF,
	}
	repo := &raceWalletRepo{stubWalletRepo: stubWalletRepo{}, winner: existing}
	svc := newTestService(t, repo)

	wallet, err := svc.GetOrCreateCookWallet(context.Background(), nil, tenantID, cookID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if wallet.ID != existing.ID {
		t.Fatalf("expected the winner's wallet, got %s", wallet.ID)
	}
}

// raceWalletRepo loses the create race: the first lookup misses, the create
// hits the unique index, and the retry lookup finds the winner's row.
type raceWalletRepo struct {
	stubWalletRepo
	winner *models.CookWallet
	misses int
}

func (r *raceWalletRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *raceWalletRepo) FindCookWalletByTenantCook(ctx context.Context, tenantID, cookID uuid.UUID) (*models.CookWallet, error) {
	if r.misses == 0 {
		r.misses++
		return nil, gorm.ErrRecordNotFound
	}
	return r.winner, nil
}

func (r *raceWalletRepo) CreateCookWallet(ctx context.Context, wallet *models.CookWallet) error {
	return errUniqueViolation{}
}

type errUniqueViolation struct{}

func (errUniqueViolation) Error() string { return "duplicate key value violates unique constraint" }

// lockedWalletRepo models the row lock taken by the FOR UPDATE read: the
// lock is acquired on the locked find and held until the caller releases it
// after the whole mutation, so a second reader always sees committed
// balances.
type lockedWalletRepo struct {
	stubWalletRepo
	mu sync.Mutex
}

func (r *lockedWalletRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *lockedWalletRepo) FindCookWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.CookWallet, error) {
	r.mu.Lock()
	return r.stubWalletRepo.FindCookWalletForUpdate(ctx, id)
}

func (r *lockedWalletRepo) release() { r.mu.Unlock() }

func TestConcurrentDebitsAllowOnlyOneWinner(t *testing.T) {
	repo := &lockedWalletRepo{stubWalletRepo: stubWalletRepo{cook: cookWalletFixture(10000, 10000, 0)}}
	svc := newTestService(t, repo)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(context.Background(), nil, enums.WalletKindCook, repo.cook.ID, Entry{
				Amount: 6000,
				Type:   enums.WalletTransactionTypeWithdrawal,
			})
			repo.release()
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, rejections int
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		appErr := pkgerrors.As(err)
		if appErr == nil || appErr.Code() != pkgerrors.CodeInsufficientFunds {
			t.Fatalf("unexpected error %v", err)
		}
		rejections++
	}
	if wins != 1 || rejections != 1 {
		t.Fatalf("expected exactly one debit to win, got %d wins and %d rejections", wins, rejections)
	}
	if repo.cook.TotalBalance != 4000 || repo.cook.WithdrawableBalance != 4000 {
		t.Fatalf("unexpected balances %+v", repo.cook)
	}
	if len(repo.transactions) != 1 {
		t.Fatalf("expected a single ledger row, got %d", len(repo.transactions))
	}
}
