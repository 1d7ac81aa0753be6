package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mbongotech/cookpay-backend/pkg/enums"
)

// PendingDeduction is a debt against a cook wallet created by a refund the
// cook could not cover. RemainingAmount only ever decreases; SettledAt is set
// exactly when it reaches zero.
type PendingDeduction struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CookWalletID    uuid.UUID             `gorm:"column:cook_wallet_id;type:uuid;not null;index"`
	OrderID         *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	OriginalAmount  int64                 `gorm:"column:original_amount;not null"`
	RemainingAmount int64                 `gorm:"column:remaining_amount;not null"`
	Reason          string                `gorm:"column:reason;not null"`
	Source          enums.DeductionSource `gorm:"column:source;type:deduction_source;not null"`
	SettledAt       *time.Time            `gorm:"column:settled_at"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
