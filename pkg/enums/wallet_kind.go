package enums

import "fmt"

// WalletKind distinguishes cook earnings wallets from client refund wallets.
type WalletKind string

const (
	WalletKindCook   WalletKind = "cook"
	WalletKindClient WalletKind = "client"
)

var validWalletKinds = []WalletKind{
	WalletKindCook,
	WalletKindClient,
}

// String implements fmt.Stringer.
func (k WalletKind) String() string {
	return string(k)
}

// IsValid reports whether the value is known.
func (k WalletKind) IsValid() bool {
	for _, candidate := range validWalletKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseWalletKind converts raw input into a WalletKind.
func ParseWalletKind(value string) (WalletKind, error) {
	for _, candidate := range validWalletKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet kind %q", value)
}
