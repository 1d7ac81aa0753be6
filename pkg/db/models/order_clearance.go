package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderClearance is the held claim a completed order creates against a cook
// wallet. At most one of IsCleared/IsPaused/IsCancelled is true at a time;
// cleared and cancelled are terminal. Rows are retained forever for audit.
type OrderClearance struct {
	ID                      uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID                 uuid.UUID       `gorm:"column:order_id;type:uuid;not null;unique"`
	TenantID                uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	CookWalletID            uuid.UUID       `gorm:"column:cook_wallet_id;type:uuid;not null;index"`
	GrossAmount             int64           `gorm:"column:gross_amount;not null"`
	CommissionRate          decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,2);not null"`
	CommissionAmount        int64           `gorm:"column:commission_amount;not null"`
	Amount                  int64           `gorm:"column:amount;not null"`
	HoldHours               int             `gorm:"column:hold_hours;not null"`
	CompletedAt             time.Time       `gorm:"column:completed_at;not null"`
	WithdrawableAt          time.Time       `gorm:"column:withdrawable_at;not null;index"`
	PausedAt                *time.Time      `gorm:"column:paused_at"`
	RemainingSecondsAtPause *int64          `gorm:"column:remaining_seconds_at_pause"`
	ClearedAt               *time.Time      `gorm:"column:cleared_at"`
	IsCleared               bool            `gorm:"column:is_cleared;not null;default:false"`
	IsPaused                bool            `gorm:"column:is_paused;not null;default:false"`
	IsCancelled             bool            `gorm:"column:is_cancelled;not null;default:false"`
	CreatedAt               time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
