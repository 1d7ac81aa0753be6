package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mbongotech/cookpay-backend/pkg/enums"
)

// AuditEvent records who did what to which settlement entity. Append-only.
type AuditEvent struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Action      enums.AuditAction `gorm:"column:action;not null;index"`
	ActorID     *uuid.UUID        `gorm:"column:actor_id;type:uuid"`
	SubjectType string            `gorm:"column:subject_type;not null"`
	SubjectID   uuid.UUID         `gorm:"column:subject_id;type:uuid;not null;index"`
	Metadata    json.RawMessage   `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}
