package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mbongotech/cookpay-backend/pkg/enums"
)

// WithdrawalRequest is a cook-initiated cash-out of withdrawable balance.
type WithdrawalRequest struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CookWalletID      uuid.UUID              `gorm:"column:cook_wallet_id;type:uuid;not null;index"`
	TenantID          uuid.UUID              `gorm:"column:tenant_id;type:uuid;not null"`
	Amount            int64                  `gorm:"column:amount;not null"`
	Currency          enums.Currency         `gorm:"column:currency;not null;default:'XAF'"`
	MobileMoneyNumber string                 `gorm:"column:mobile_money_number;not null"`
	PaymentMethod     string                 `gorm:"column:payment_method;not null"`
	Status            enums.WithdrawalStatus `gorm:"column:status;type:withdrawal_status;not null;default:'pending'"`
	ProviderReference *string                `gorm:"column:provider_reference"`
	FailureReason     *string                `gorm:"column:failure_reason"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
