package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mbongotech/cookpay-backend/pkg/enums"
)

// CookWallet holds a cook's earnings for one tenant storefront. The three
// balances always satisfy total == withdrawable + unwithdrawable, all >= 0.
type CookWallet struct {
	ID                    uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID              uuid.UUID      `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:idx_cook_wallets_tenant_cook"`
	CookID                uuid.UUID      `gorm:"column:cook_id;type:uuid;not null;uniqueIndex:idx_cook_wallets_tenant_cook"`
	TotalBalance          int64          `gorm:"column:total_balance;not null;default:0"`
	WithdrawableBalance   int64          `gorm:"column:withdrawable_balance;not null;default:0"`
	UnwithdrawableBalance int64          `gorm:"column:unwithdrawable_balance;not null;default:0"`
	Currency              enums.Currency `gorm:"column:currency;not null;default:'XAF'"`
	CreatedAt             time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
