package clearance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mbongotech/cookpay-backend/internal/audit"
	"github.com/mbongotech/cookpay-backend/internal/commission"
	"github.com/mbongotech/cookpay-backend/internal/deduction"
	"github.com/mbongotech/cookpay-backend/internal/wallet"
	"github.com/mbongotech/cookpay-backend/pkg/config"
	"github.com/mbongotech/cookpay-backend/pkg/db"
	"github.com/mbongotech/cookpay-backend/pkg/db/models"
	"github.com/mbongotech/cookpay-backend/pkg/enums"
	pkgerrors "github.com/mbongotech/cookpay-backend/pkg/errors"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
	"github.com/mbongotech/cookpay-backend/pkg/pagination"
)

type stubClearanceRepo struct {
	rows map[uuid.UUID]*models.OrderClearance
	due  []models.OrderClearance
}

func newStubClearanceRepo() *stubClearanceRepo {
	return &stubClearanceRepo{rows: make(map[uuid.UUID]*models.OrderClearance)}
}

func (s *stubClearanceRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubClearanceRepo) Create(ctx context.Context, row *models.OrderClearance) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	s.rows[row.ID] = row
	return nil
}

func (s *stubClearanceRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderClearance, error) {
	for _, row := range s.rows {
		if row.OrderID == orderID {
			return row, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubClearanceRepo) FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.OrderClearance, error) {
	return s.FindByOrderID(ctx, orderID)
}

func (s *stubClearanceRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.OrderClearance, error) {
	row, ok := s.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (s *stubClearanceRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]models.OrderClearance, error) {
	return s.due, nil
}

func (s *stubClearanceRepo) Update(ctx context.Context, row *models.OrderClearance) error {
	s.rows[row.ID] = row
	return nil
}

func (s *stubClearanceRepo) ListByWallet(ctx context.Context, cookWalletID uuid.UUID, limit int) ([]models.OrderClearance, error) {
	var out []models.OrderClearance
	for _, row := range s.rows {
		if row.CookWalletID == cookWalletID {
			out = append(out, *row)
		}
	}
	return out, nil
}

// fakeWalletService tracks a single cook wallet's balances in memory and
// records every ledger entry applied through it.
type fakeWalletService struct {
	walletID     uuid.UUID
	total        int64
	withdrawable int64
	held         int64
	entries      []wallet.Entry
	promoted     []int64
}

func (f *fakeWalletService) GetOrCreateCookWallet(ctx context.Context, tx *gorm.DB, tenantID, cookID uuid.UUID) (*models.CookWallet, error) {
	return &models.CookWallet{ID: f.walletID, TenantID: tenantID, CookID: cookID, Currency: enums.CurrencyXAF}, nil
}

func (f *fakeWalletService) GetOrCreateClientWallet(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) (*models.ClientWallet, error) {
	return &models.ClientWallet{ID: uuid.New(), ClientID: clientID, Currency: enums.CurrencyXAF}, nil
}

func (f *fakeWalletService) GetCookWallet(ctx context.Context, id uuid.UUID) (*models.CookWallet, error) {
	return &models.CookWallet{ID: id}, nil
}

func (f *fakeWalletService) GetCookWalletByTenantCook(ctx context.Context, tenantID, cookID uuid.UUID) (*models.CookWallet, error) {
	return &models.CookWallet{ID: f.walletID, TenantID: tenantID, CookID: cookID}, nil
}

func (f *fakeWalletService) GetClientWallet(ctx context.Context, clientID uuid.UUID) (*models.ClientWallet, error) {
	return &models.ClientWallet{ID: uuid.New(), ClientID: clientID}, nil
}

func (f *fakeWalletService) Credit(ctx context.Context, tx *gorm.DB, kind enums.WalletKind, walletID uuid.UUID, entry wallet.Entry, withdrawable bool) (*models.WalletTransaction, error) {
	f.entries = append(f.entries, entry)
	f.total += entry.Amount
	if withdrawable {
		f.withdrawable += entry.Amount
	} else {
		f.held += entry.Amount
	}
	return &models.WalletTransaction{Amount: entry.Amount, Type: entry.Type}, nil
}

func (f *fakeWalletService) Debit(ctx context.Context, tx *gorm.DB, kind enums.WalletKind, walletID uuid.UUID, entry wallet.Entry) (*models.WalletTransaction, error) {
	f.entries = append(f.entries, entry)
	f.total -= entry.Amount
	f.withdrawable -= entry.Amount
	return &models.WalletTransaction{Amount: -entry.Amount, Type: entry.Type}, nil
}

func (f *fakeWalletService) DebitHeld(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, entry wallet.Entry) (*models.WalletTransaction, error) {
	if entry.Amount > f.held {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "debit exceeds held balance")
	}
	f.entries = append(f.entries, entry)
	f.total -= entry.Amount
	f.held -= entry.Amount
	return &models.WalletTransaction{Amount: -entry.Amount, Type: entry.Type}, nil
}

func (f *fakeWalletService) Promote(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, amount int64) error {
	if amount > f.held {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "promote exceeds held balance")
	}
	f.held -= amount
	f.withdrawable += amount
	f.promoted = append(f.promoted, amount)
	return nil
}

func (f *fakeWalletService) ListTransactions(ctx context.Context, kind enums.WalletKind, walletID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, string, error) {
	return nil, "", nil
}

func (f *fakeWalletService) entryTypes() []enums.WalletTransactionType {
	out := make([]enums.WalletTransactionType, 0, len(f.entries))
	for _, entry := range f.entries {
		out = append(out, entry.Type)
	}
	return out
}

// fakeDeductionService settles up to openDebt of any credit passed through.
type fakeDeductionService struct {
	openDebt int64
}

func (f *fakeDeductionService) Record(ctx context.Context, tx *gorm.DB, input deduction.RecordInput) (*models.PendingDeduction, error) {
	return &models.PendingDeduction{ID: uuid.New(), CookWalletID: input.CookWalletID, OriginalAmount: input.Amount, RemainingAmount: input.Amount}, nil
}

func (f *fakeDeductionService) SettleAgainst(ctx context.Context, tx *gorm.DB, cookWalletID uuid.UUID, credit int64, now time.Time) (int64, int64, error) {
	settled := f.openDebt
	if settled > credit {
		settled = credit
	}
	f.openDebt -= settled
	return credit - settled, settled, nil
}

func (f *fakeDeductionService) ListByWallet(ctx context.Context, cookWalletID uuid.UUID, includeSettled bool) ([]models.PendingDeduction, error) {
	return nil, nil
}

func (f *fakeDeductionService) OpenTotal(ctx context.Context, cookWalletID uuid.UUID) (int64, error) {
	return f.openDebt, nil
}

type fakeCommissionService struct {
	rate decimal.Decimal
}

func (f *fakeCommissionService) CurrentRate(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (decimal.Decimal, error) {
	return f.rate, nil
}

func (f *fakeCommissionService) SetRate(ctx context.Context, tenantID uuid.UUID, newRate decimal.Decimal, changedBy uuid.UUID, reason string) (*commission.SetRateResult, error) {
	return &commission.SetRateResult{}, nil
}

func (f *fakeCommissionService) ResetToDefault(ctx context.Context, tenantID uuid.UUID, changedBy uuid.UUID, reason string) (*commission.SetRateResult, error) {
	return &commission.SetRateResult{}, nil
}

func (f *fakeCommissionService) History(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.CommissionChange, error) {
	return nil, nil
}

func (f *fakeCommissionService) DefaultRate() decimal.Decimal { return f.rate }

type noopSink struct{}

func (noopSink) Record(ctx context.Context, tx *gorm.DB, event audit.Event) error { return nil }

func newTestDB(t *testing.T) *db.Client {
	t.Helper()
	client, err := db.New(context.Background(), config.DBConfig{
		DSN:    "file::memory:?cache=shared",
		Driver: "sqlite",
	}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return client
}

type testHarness struct {
	repo       *stubClearanceRepo
	wallets    *fakeWalletService
	deductions *fakeDeductionService
	svc        Service
	now        time.Time
}

func newHarness(t *testing.T, rate string, openDebt int64) *testHarness {
	t.Helper()
	h := &testHarness{
		repo:       newStubClearanceRepo(),
		wallets:    &fakeWalletService{walletID: uuid.New()},
		deductions: &fakeDeductionService{openDebt: openDebt},
		now:        time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		Repo:        h.repo,
		DB:          newTestDB(t),
		Wallets:     h.wallets,
		Deductions:  h.deductions,
		Commissions: &fakeCommissionService{rate: decimal.RequireFromString(rate)},
		Audit:       noopSink{},
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
		Settlement:  config.SettlementConfig{HoldHours: 3, SweepBatchSize: 200},
		Now:         func() time.Time { return h.now },
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	h.svc = svc
	return h
}

func TestOpenCapturesCommissionAndHoldsNet(t *testing.T) {
	h := newHarness(t, "10", 0)

	completedAt := h.now.Add(-time.Hour)
	row, err := h.svc.Open(context.Background(), OpenInput{
		OrderID:     uuid.New(),
		TenantID:    uuid.New(),
		CookID:      uuid.New(),
		GrossAmount: 10000,
		CompletedAt: completedAt,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}

	if row.CommissionAmount != 1000 || row.Amount != 9000 {
		t.Fatalf("expected 1000/9000 split, got %d/%d", row.CommissionAmount, row.Amount)
	}
	if !row.CommissionRate.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("rate must be frozen on the row, got %s", row.CommissionRate)
	}
	if want := completedAt.Add(3 * time.Hour); !row.WithdrawableAt.Equal(want) {
		t.Fatalf("expected maturity %s got %s", want, row.WithdrawableAt)
	}

	// Gross lands held, then commission is debited from the hold.
	types := h.wallets.entryTypes()
	if len(types) != 2 || types[0] != enums.WalletTransactionTypePaymentCredit || types[1] != enums.WalletTransactionTypeCommission {
		t.Fatalf("unexpected ledger sequence %v", types)
	}
	if h.wallets.held != 9000 || h.wallets.withdrawable != 0 {
		t.Fatalf("expected 9000 held, got held=%d withdrawable=%d", h.wallets.held, h.wallets.withdrawable)
	}
}

func TestOpenRejectsDuplicateOrder(t *testing.T) {
	h := newHarness(t, "10", 0)
	orderID := uuid.New()

	input := OpenInput{OrderID: orderID, TenantID: uuid.New(), CookID: uuid.New(), GrossAmount: 5000}
	if _, err := h.svc.Open(context.Background(), input); err != nil {
		t.Fatalf("first open failed: %v", err)
	}

	_, err := h.svc.Open(context.Background(), input)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT got %v", err)
	}
}

func TestPauseStoresRemainingAndResumeRestartsClock(t *testing.T) {
	h := newHarness(t, "0", 0)
	orderID := uuid.New()

	if _, err := h.svc.Open(context.Background(), OpenInput{
		OrderID: orderID, TenantID: uuid.New(), CookID: uuid.New(), GrossAmount: 5000,
	}); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	// One hour into the three hour hold.
	h.now = h.now.Add(time.Hour)
	paused, err := h.svc.Pause(context.Background(), orderID, uuid.New())
	if err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if !paused.IsPaused || paused.RemainingSecondsAtPause == nil {
		t.Fatalf("expected paused row, got %+v", paused)
	}
	if *paused.RemainingSecondsAtPause != int64(2*time.Hour/time.Second) {
		t.Fatalf("expected 2h remaining, got %ds", *paused.RemainingSecondsAtPause)
	}

	// A day later the dispute resolves; the clock restarts with 2h left.
	h.now = h.now.Add(24 * time.Hour)
	resumed, err := h.svc.Resume(context.Background(), orderID, uuid.New())
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed.IsPaused || resumed.PausedAt != nil {
		t.Fatalf("expected running row, got %+v", resumed)
	}
	if want := h.now.Add(2 * time.Hour); !resumed.WithdrawableAt.Equal(want) {
		t.Fatalf("expected maturity %s got %s", want, resumed.WithdrawableAt)
	}
}

func TestPauseTwiceFails(t *testing.T) {
	h := newHarness(t, "0", 0)
	orderID := uuid.New()
	if _, err := h.svc.Open(context.Background(), OpenInput{
		OrderID: orderID, TenantID: uuid.New(), CookID: uuid.New(), GrossAmount: 5000,
	}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := h.svc.Pause(context.Background(), orderID, uuid.New()); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	_, err := h.svc.Pause(context.Background(), orderID, uuid.New())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT got %v", err)
	}
}

func TestCancelReversesHeldFunds(t *testing.T) {
	h := newHarness(t, "10", 0)
	orderID := uuid.New()
	if _, err := h.svc.Open(context.Background(), OpenInput{
		OrderID: orderID, TenantID: uuid.New(), CookID: uuid.New(), GrossAmount: 10000,
	}); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	actorID := uuid.New()
	row, err := h.svc.Cancel(context.Background(), nil, orderID, &actorID, "order refunded")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if !row.IsCancelled {
		t.Fatal("expected cancelled row")
	}
	if h.wallets.held != 0 {
		t.Fatalf("expected hold drained, got %d", h.wallets.held)
	}
	last := h.wallets.entries[len(h.wallets.entries)-1]
	if last.Type != enums.WalletTransactionTypeClearanceReversal || last.Amount != 9000 {
		t.Fatalf("expected 9000 reversal, got %+v", last)
	}
}

func TestCancelClearedFails(t *testing.T) {
	h := newHarness(t, "0", 0)
	orderID := uuid.New()
	if _, err := h.svc.Open(context.Background(), OpenInput{
		OrderID: orderID, TenantID: uuid.New(), CookID: uuid.New(), GrossAmount: 5000,
	}); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	h.now = h.now.Add(4 * time.Hour)
	row, _ := h.repo.FindByOrderID(context.Background(), orderID)
	h.repo.due = []models.OrderClearance{*row}
	if _, err := h.svc.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	_, err := h.svc.Cancel(context.Background(), nil, orderID, nil, "too late")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT got %v", err)
	}
}

func TestSweepReleasesMaturedClearance(t *testing.T) {
	h := newHarness(t, "10", 0)
	orderID := uuid.New()
	if _, err := h.svc.Open(context.Background(), OpenInput{
		OrderID: orderID, TenantID: uuid.New(), CookID: uuid.New(), GrossAmount: 10000,
	}); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	h.now = h.now.Add(4 * time.Hour)
	row, _ := h.repo.FindByOrderID(context.Background(), orderID)
	h.repo.due = []models.OrderClearance{*row}

	result, err := h.svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Cleared != 1 || result.Skipped != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if h.wallets.withdrawable != 9000 || h.wallets.held != 0 {
		t.Fatalf("expected 9000 withdrawable, got withdrawable=%d held=%d", h.wallets.withdrawable, h.wallets.held)
	}
	released, _ := h.repo.FindByOrderID(context.Background(), orderID)
	if !released.IsCleared || released.ClearedAt == nil {
		t.Fatalf("expected cleared row, got %+v", released)
	}
}

func TestSweepSettlesDebtBeforeRelease(t *testing.T) {
	h := newHarness(t, "10", 4000)
	orderID := uuid.New()
	if _, err := h.svc.Open(context.Background(), OpenInput{
		OrderID: orderID, TenantID: uuid.New(), CookID: uuid.New(), GrossAmount: 10000,
	}); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	h.now = h.now.Add(4 * time.Hour)
	row, _ := h.repo.FindByOrderID(context.Background(), orderID)
	h.repo.due = []models.OrderClearance{*row}

	if _, err := h.svc.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	// 9000 net: 4000 leaves for debt, 5000 matures.
	if h.wallets.withdrawable != 5000 || h.wallets.held != 0 {
		t.Fatalf("expected 5000 withdrawable, got withdrawable=%d held=%d", h.wallets.withdrawable, h.wallets.held)
	}
	last := h.wallets.entries[len(h.wallets.entries)-1]
	if last.Type != enums.WalletTransactionTypeDeductionSettlement || last.Amount != 4000 {
		t.Fatalf("expected 4000 settlement debit, got %+v", last)
	}
	if h.deductions.openDebt != 0 {
		t.Fatalf("expected debt cleared, got %d", h.deductions.openDebt)
	}
}

func TestSweepSkipsRowPausedAfterListing(t *testing.T) {
	h := newHarness(t, "0", 0)
	orderID := uuid.New()
	if _, err := h.svc.Open(context.Background(), OpenInput{
		OrderID: orderID, TenantID: uuid.New(), CookID: uuid.New(), GrossAmount: 5000,
	}); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	h.now = h.now.Add(4 * time.Hour)
	row, _ := h.repo.FindByOrderID(context.Background(), orderID)
	// The due listing saw the row, but a pause won the race before the lock.
	h.repo.due = []models.OrderClearance{*row}
	if _, err := h.svc.Pause(context.Background(), orderID, uuid.New()); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	result, err := h.svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Cleared != 0 || result.Skipped != 1 {
		t.Fatalf("expected skip, got %+v", result)
	}
	if len(h.wallets.promoted) != 0 {
		t.Fatal("paused clearance must not release funds")
	}
}
