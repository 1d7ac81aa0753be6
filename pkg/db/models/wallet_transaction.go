package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mbongotech/cookpay-backend/pkg/enums"
)

// WalletTransaction is an immutable ledger entry. Amount is signed: credits
// are positive, debits negative, so the sum over a wallet equals its current
// total balance. Corrections are new offsetting entries, never updates.
type WalletTransaction struct {
	ID             uuid.UUID                     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletKind     enums.WalletKind              `gorm:"column:wallet_kind;not null;index:idx_wallet_transactions_wallet"`
	WalletID       uuid.UUID                     `gorm:"column:wallet_id;type:uuid;not null;index:idx_wallet_transactions_wallet"`
	OrderID        *uuid.UUID                    `gorm:"column:order_id;type:uuid"`
	Type           enums.WalletTransactionType   `gorm:"column:type;type:wallet_transaction_type;not null"`
	Amount         int64                         `gorm:"column:amount;not null"`
	BalanceBefore  int64                         `gorm:"column:balance_before;not null"`
	BalanceAfter   int64                         `gorm:"column:balance_after;not null"`
	IsWithdrawable bool                          `gorm:"column:is_withdrawable;not null;default:false"`
	WithdrawableAt *time.Time                    `gorm:"column:withdrawable_at"`
	Status         enums.WalletTransactionStatus `gorm:"column:status;type:wallet_transaction_status;not null;default:'completed'"`
	Metadata       json.RawMessage               `gorm:"column:metadata;type:jsonb"`
	CreatedAt      time.Time                     `gorm:"column:created_at;autoCreateTime"`
}
