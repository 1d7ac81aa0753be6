package enums

import "fmt"

// WalletTransactionStatus describes the hold state a ledger entry was born with.
// Entries are append-only; a pending credit is superseded by later settlement
// entries rather than updated in place.
type WalletTransactionStatus string

const (
	WalletTransactionStatusPending   WalletTransactionStatus = "pending"
	WalletTransactionStatusCompleted WalletTransactionStatus = "completed"
)

var validWalletTransactionStatuses = []WalletTransactionStatus{
	WalletTransactionStatusPending,
	WalletTransactionStatusCompleted,
}

// String implements fmt.Stringer.
func (s WalletTransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s WalletTransactionStatus) IsValid() bool {
	for _, candidate := range validWalletTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWalletTransactionStatus converts raw input into a WalletTransactionStatus.
func ParseWalletTransactionStatus(value string) (WalletTransactionStatus, error) {
	for _, candidate := range validWalletTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction status %q", value)
}
