package refund

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mbongotech/cookpay-backend/internal/audit"
	"github.com/mbongotech/cookpay-backend/internal/clearance"
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

// fakeWallets tracks one cook wallet and one client wallet in memory.
type fakeWallets struct {
	cook    models.CookWallet
	client  models.ClientWallet
	debits  []wallet.Entry
	credits []wallet.Entry
}

func (f *fakeWallets) GetOrCreateCookWallet(ctx context.Context, tx *gorm.DB, tenantID, cookID uuid.UUID) (*models.CookWallet, error) {
	return &f.cook, nil
}

func (f *fakeWallets) GetOrCreateClientWallet(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) (*models.ClientWallet, error) {
	f.client.ClientID = clientID
	return &f.client, nil
}

func (f *fakeWallets) GetCookWallet(ctx context.Context, id uuid.UUID) (*models.CookWallet, error) {
	return &f.cook, nil
}

func (f *fakeWallets) GetCookWalletByTenantCook(ctx context.Context, tenantID, cookID uuid.UUID) (*models.CookWallet, error) {
	return &f.cook, nil
}

func (f *fakeWallets) GetClientWallet(ctx context.Context, clientID uuid.UUID) (*models.ClientWallet, error) {
	return &f.client, nil
}

func (f *fakeWallets) Credit(ctx context.Context, tx *gorm.DB, kind enums.WalletKind, walletID uuid.UUID, entry wallet.Entry, withdrawable bool) (*models.WalletTransaction, error) {
	if kind == enums.WalletKindClient {
		f.client.TotalBalance += entry.Amount
		f.client.WithdrawableBalance += entry.Amount
	} else {
		f.credits = append(f.credits, entry)
		f.cook.TotalBalance += entry.Amount
		if withdrawable {
			f.cook.WithdrawableBalance += entry.Amount
		} else {
			f.cook.UnwithdrawableBalance += entry.Amount
		}
	}
	return &models.WalletTransaction{Amount: entry.Amount, Type: entry.Type}, nil
}

func (f *fakeWallets) Debit(ctx context.Context, tx *gorm.DB, kind enums.WalletKind, walletID uuid.UUID, entry wallet.Entry) (*models.WalletTransaction, error) {
	if entry.Amount > f.cook.WithdrawableBalance {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "debit exceeds withdrawable balance")
	}
	f.debits = append(f.debits, entry)
	f.cook.TotalBalance -= entry.Amount
	f.cook.WithdrawableBalance -= entry.Amount
	return &models.WalletTransaction{Amount: -entry.Amount, Type: entry.Type}, nil
}

func (f *fakeWallets) DebitHeld(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, entry wallet.Entry) (*models.WalletTransaction, error) {
	if entry.Amount > f.cook.UnwithdrawableBalance {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "debit exceeds held balance")
	}
	f.cook.TotalBalance -= entry.Amount
	f.cook.UnwithdrawableBalance -= entry.Amount
	return &models.WalletTransaction{Amount: -entry.Amount, Type: entry.Type}, nil
}

func (f *fakeWallets) Promote(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, amount int64) error {
	return nil
}

func (f *fakeWallets) ListTransactions(ctx context.Context, kind enums.WalletKind, walletID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, string, error) {
	return nil, "", nil
}

// fakeClearances holds one clearance row. Cancel debits the full held net
// from the wallet, the same movement the real service makes.
type fakeClearances struct {
	row       *models.OrderClearance
	wallets   *fakeWallets
	cancelled bool
}

func (f *fakeClearances) Open(ctx context.Context, input clearance.OpenInput) (*models.OrderClearance, error) {
	return nil, nil
}

func (f *fakeClearances) Pause(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID) (*models.OrderClearance, error) {
	return nil, nil
}

func (f *fakeClearances) Resume(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID) (*models.OrderClearance, error) {
	return nil, nil
}

func (f *fakeClearances) Cancel(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actorID *uuid.UUID, reason string) (*models.OrderClearance, error) {
	if _, err := f.wallets.DebitHeld(ctx, tx, f.row.CookWalletID, wallet.Entry{
		Amount:  f.row.Amount,
		Type:    enums.WalletTransactionTypeClearanceReversal,
		OrderID: &f.row.OrderID,
	}); err != nil {
		return nil, err
	}
	f.cancelled = true
	f.row.IsCancelled = true
	return f.row, nil
}

func (f *fakeClearances) Sweep(ctx context.Context) (*clearance.SweepResult, error) {
	return &clearance.SweepResult{}, nil
}

func (f *fakeClearances) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderClearance, error) {
	if f.row == nil || f.row.OrderID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "clearance not found")
	}
	return f.row, nil
}

func (f *fakeClearances) ListByWallet(ctx context.Context, cookWalletID uuid.UUID, limit int) ([]models.OrderClearance, error) {
	return nil, nil
}

type recordingDeductions struct {
	recorded []deduction.RecordInput
}

func (r *recordingDeductions) Record(ctx context.Context, tx *gorm.DB, input deduction.RecordInput) (*models.PendingDeduction, error) {
	r.recorded = append(r.recorded, input)
	return &models.PendingDeduction{ID: uuid.New(), CookWalletID: input.CookWalletID, OriginalAmount: input.Amount, RemainingAmount: input.Amount}, nil
}

func (r *recordingDeductions) SettleAgainst(ctx context.Context, tx *gorm.DB, cookWalletID uuid.UUID, credit int64, now time.Time) (int64, int64, error) {
	return credit, 0, nil
}

func (r *recordingDeductions) ListByWallet(ctx context.Context, cookWalletID uuid.UUID, includeSettled bool) ([]models.PendingDeduction, error) {
	return nil, nil
}

func (r *recordingDeductions) OpenTotal(ctx context.Context, cookWalletID uuid.UUID) (int64, error) {
	return 0, nil
}

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

func newRefundService(t *testing.T, wallets wallet.Service, clearances clearance.Service, deductions deduction.Service) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		DB:         newTestDB(t),
		Wallets:    wallets,
		Clearances: clearances,
		Deductions: deductions,
		Audit:      noopSink{},
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func unclearedClearance(orderID, cookWalletID uuid.UUID, net int64) *models.OrderClearance {
	return &models.OrderClearance{
		ID:             uuid.New(),
		OrderID:        orderID,
		CookWalletID:   cookWalletID,
		GrossAmount:    net,
		CommissionRate: decimal.Zero,
		Amount:         net,
	}
}

func TestRefundFundedEntirelyFromHold(t *testing.T) {
	orderID := uuid.New()
	cookWalletID := uuid.New()
	wallets := &fakeWallets{cook: models.CookWallet{ID: cookWalletID, TotalBalance: 8000, UnwithdrawableBalance: 8000}}
	clearances := &fakeClearances{row: unclearedClearance(orderID, cookWalletID, 8000), wallets: wallets}
	deductions := &recordingDeductions{}
	svc := newRefundService(t, wallets, clearances, deductions)

	result, err := svc.Execute(context.Background(), Input{
		OrderID:  orderID,
		ClientID: uuid.New(),
		Amount:   8000,
		Reason:   "meal never delivered",
		Source:   enums.DeductionSourceComplaintRefund,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if !clearances.cancelled {
		t.Fatal("expected the clearance to be cancelled")
	}
	if result.ReversedFromHold != 8000 || result.DebitedWithdrawable != 0 || result.DeductionRecorded != 0 || result.ReturnedToCook != 0 {
		t.Fatalf("unexpected funding %+v", result)
	}
	if wallets.cook.TotalBalance != 0 || wallets.cook.UnwithdrawableBalance != 0 {
		t.Fatalf("cook hold should be drained, got %+v", wallets.cook)
	}
	if result.CreditedToClient != 8000 || wallets.client.WithdrawableBalance != 8000 {
		t.Fatalf("client must be made whole, got %+v", result)
	}
	if len(deductions.recorded) != 0 {
		t.Fatal("no deduction expected when the hold covers the refund")
	}
}

func TestRefundSmallerThanHoldReturnsSurplusToCook(t *testing.T) {
	orderID := uuid.New()
	cookWalletID := uuid.New()
	wallets := &fakeWallets{cook: models.CookWallet{ID: cookWalletID, TotalBalance: 9000, UnwithdrawableBalance: 9000}}
	clearances := &fakeClearances{row: unclearedClearance(orderID, cookWalletID, 9000), wallets: wallets}
	deductions := &recordingDeductions{}
	svc := newRefundService(t, wallets, clearances, deductions)

	result, err := svc.Execute(context.Background(), Input{
		OrderID:  orderID,
		ClientID: uuid.New(),
		Amount:   8000,
		Reason:   "late delivery",
		Source:   enums.DeductionSourceComplaintRefund,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.ReversedFromHold != 8000 || result.ReturnedToCook != 1000 {
		t.Fatalf("unexpected funding %+v", result)
	}
	if result.DebitedWithdrawable != 0 || result.DeductionRecorded != 0 {
		t.Fatalf("nothing beyond the hold should be touched, got %+v", result)
	}
	// Cancelling pulled the full 9000 hold; the 1000 the refund did not
	// consume must come back to the cook as withdrawable money.
	if wallets.cook.TotalBalance != 1000 || wallets.cook.WithdrawableBalance != 1000 || wallets.cook.UnwithdrawableBalance != 0 {
		t.Fatalf("cook should keep the 1000 surplus, got %+v", wallets.cook)
	}
	if len(wallets.credits) != 1 || wallets.credits[0].Amount != 1000 || wallets.credits[0].Type != enums.WalletTransactionTypeClearanceReversal {
		t.Fatalf("expected one 1000 surplus credit, got %+v", wallets.credits)
	}
	if wallets.client.WithdrawableBalance != 8000 {
		t.Fatalf("client must receive the full refund, got %d", wallets.client.WithdrawableBalance)
	}
	if len(deductions.recorded) != 0 {
		t.Fatal("no deduction expected when the hold covers the refund")
	}
}

func TestRefundFallsBackToWithdrawable(t *testing.T) {
	orderID := uuid.New()
	cookWalletID := uuid.New()
	wallets := &fakeWallets{cook: models.CookWallet{ID: cookWalletID, TotalBalance: 8000, WithdrawableBalance: 5000, UnwithdrawableBalance: 3000}}
	clearances := &fakeClearances{row: unclearedClearance(orderID, cookWalletID, 3000), wallets: wallets}
	deductions := &recordingDeductions{}
	svc := newRefundService(t, wallets, clearances, deductions)

	result, err := svc.Execute(context.Background(), Input{
		OrderID:  orderID,
		ClientID: uuid.New(),
		Amount:   7000,
		Reason:   "partial order",
		Source:   enums.DeductionSourceComplaintRefund,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.ReversedFromHold != 3000 || result.DebitedWithdrawable != 4000 || result.DeductionRecorded != 0 {
		t.Fatalf("unexpected funding %+v", result)
	}
	if wallets.cook.WithdrawableBalance != 1000 {
		t.Fatalf("expected 1000 left withdrawable, got %d", wallets.cook.WithdrawableBalance)
	}
}

func TestRefundShortfallBecomesDeduction(t *testing.T) {
	orderID := uuid.New()
	cookWalletID := uuid.New()
	wallets := &fakeWallets{cook: models.CookWallet{ID: cookWalletID, TotalBalance: 1000, WithdrawableBalance: 1000}}
	cleared := unclearedClearance(orderID, cookWalletID, 5000)
	cleared.IsCleared = true
	clearances := &fakeClearances{row: cleared, wallets: wallets}
	deductions := &recordingDeductions{}
	svc := newRefundService(t, wallets, clearances, deductions)

	result, err := svc.Execute(context.Background(), Input{
		OrderID:  orderID,
		ClientID: uuid.New(),
		Amount:   5000,
		Reason:   "food safety complaint",
		Source:   enums.DeductionSourceComplaintRefund,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if clearances.cancelled {
		t.Fatal("a cleared clearance must not be cancelled")
	}
	if result.ReversedFromHold != 0 || result.DebitedWithdrawable != 1000 || result.DeductionRecorded != 4000 {
		t.Fatalf("unexpected funding %+v", result)
	}
	if len(deductions.recorded) != 1 || deductions.recorded[0].Amount != 4000 {
		t.Fatalf("expected a 4000 deduction, got %+v", deductions.recorded)
	}
	if result.CreditedToClient != 5000 {
		t.Fatalf("client must receive the full refund, got %d", result.CreditedToClient)
	}
}

func TestRefundUnknownOrderFails(t *testing.T) {
	svc := newRefundService(t, &fakeWallets{}, &fakeClearances{}, &recordingDeductions{})

	_, err := svc.Execute(context.Background(), Input{
		OrderID:  uuid.New(),
		ClientID: uuid.New(),
		Amount:   1000,
		Reason:   "no such order",
		Source:   enums.DeductionSourceComplaintRefund,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND got %v", err)
	}
}

func TestRefundRejectsInvalidInput(t *testing.T) {
	svc := newRefundService(t, &fakeWallets{}, &fakeClearances{}, &recordingDeductions{})

	cases := []Input{
		{ClientID: uuid.New(), Amount: 1000, Reason: "x", Source: enums.DeductionSourceComplaintRefund},
		{OrderID: uuid.New(), Amount: 1000, Reason: "x", Source: enums.DeductionSourceComplaintRefund},
		{OrderID: uuid.New(), ClientID: uuid.New(), Amount: 0, Reason: "x", Source: enums.DeductionSourceComplaintRefund},
		{OrderID: uuid.New(), ClientID: uuid.New(), Amount: 1000, Reason: " ", Source: enums.DeductionSourceComplaintRefund},
		{OrderID: uuid.New(), ClientID: uuid.New(), Amount: 1000, Reason: "x", Source: "bogus"},
	}
	for i, input := range cases {
		_, err := svc.Execute(context.Background(), input)
		appErr := pkgerrors.As(err)
		if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
			t.Fatalf("case %d: expected VALIDATION_ERROR got %v", i, err)
		}
	}
}
