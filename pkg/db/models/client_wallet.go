package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mbongotech/cookpay-backend/pkg/enums"
)

// ClientWallet stores refund credits owed to a client. Same balance invariant
// as CookWallet; refund credits land directly in the withdrawable bucket.
type ClientWallet struct {
	ID                    uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClientID              uuid.UUID      `gorm:"column:client_id;type:uuid;not null;unique"`
	TotalBalance          int64          `gorm:"column:total_balance;not null;default:0"`
	WithdrawableBalance   int64          `gorm:"column:withdrawable_balance;not null;default:0"`
	UnwithdrawableBalance int64          `gorm:"column:unwithdrawable_balance;not null;default:0"`
	Currency              enums.Currency `gorm:"column:currency;not null;default:'XAF'"`
	CreatedAt             time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
