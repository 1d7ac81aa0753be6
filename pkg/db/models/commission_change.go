package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionChange is an immutable audit row for a tenant commission rate
// change. The tenant's current rate is the NewRate of its most recent row.
type CommissionChange struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID  uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	OldRate   decimal.Decimal `gorm:"column:old_rate;type:numeric(5,2);not null"`
	NewRate   decimal.Decimal `gorm:"column:new_rate;type:numeric(5,2);not null"`
	ChangedBy uuid.UUID       `gorm:"column:changed_by;type:uuid;not null"`
	Reason    *string         `gorm:"column:reason"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
