package enums

import "fmt"

// WalletTransactionType maps to the wallet_transaction_type enum in Postgres.
type WalletTransactionType string

const (
	WalletTransactionTypePaymentCredit       WalletTransactionType = "payment_credit"
	WalletTransactionTypeCommission          WalletTransactionType = "commission"
	WalletTransactionTypeRefund              WalletTransactionType = "refund"
	WalletTransactionTypeRefundCredit        WalletTransactionType = "refund_credit"
	WalletTransactionTypeWithdrawal          WalletTransactionType = "withdrawal"
	WalletTransactionTypeDeductionSettlement WalletTransactionType = "deduction_settlement"
	WalletTransactionTypeClearanceReversal   WalletTransactionType = "clearance_reversal"
)

var validWalletTransactionTypes = []WalletTransactionType{
	WalletTransactionTypePaymentCredit,
	WalletTransactionTypeCommission,
	WalletTransactionTypeRefund,
	WalletTransactionTypeRefundCredit,
	WalletTransactionTypeWithdrawal,
	WalletTransactionTypeDeductionSettlement,
	WalletTransactionTypeClearanceReversal,
}

// String implements fmt.Stringer.
func (t WalletTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical enum.
func (t WalletTransactionType) IsValid() bool {
	for _, candidate := range validWalletTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseWalletTransactionType converts raw input into WalletTransactionType.
func ParseWalletTransactionType(value string) (WalletTransactionType, error) {
	for _, candidate := range validWalletTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction type %q", value)
}
