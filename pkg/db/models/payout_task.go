package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mbongotech/cookpay-backend/pkg/enums"
)

// PayoutTask tracks a failed automatic transfer awaiting retry or manual
// resolution. Once status leaves pending the row is terminal.
type PayoutTask struct {
	ID                  uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WithdrawalRequestID uuid.UUID              `gorm:"column:withdrawal_request_id;type:uuid;not null;unique"`
	CookWalletID        uuid.UUID              `gorm:"column:cook_wallet_id;type:uuid;not null;index"`
	Amount              int64                  `gorm:"column:amount;not null"`
	Currency            enums.Currency         `gorm:"column:currency;not null;default:'XAF'"`
	MobileMoneyNumber   string                 `gorm:"column:mobile_money_number;not null"`
	PaymentMethod       string                 `gorm:"column:payment_method;not null"`
	Status              enums.PayoutTaskStatus `gorm:"column:status;type:payout_task_status;not null;default:'pending'"`
	RetryCount          int                    `gorm:"column:retry_count;not null;default:0"`
	LastRetryAt         *time.Time             `gorm:"column:last_retry_at"`
	FailureReason       *string                `gorm:"column:failure_reason"`
	ProviderReference   *string                `gorm:"column:provider_reference"`
	ProviderResponse    json.RawMessage        `gorm:"column:provider_response;type:jsonb"`
	ReferenceNumber     *string                `gorm:"column:reference_number"`
	Notes               *string                `gorm:"column:notes"`
	CompletedBy         *uuid.UUID             `gorm:"column:completed_by;type:uuid"`
	CompletedAt         *time.Time             `gorm:"column:completed_at"`
	CreatedAt           time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
