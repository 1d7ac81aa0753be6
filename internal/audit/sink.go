package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mbongotech/cookpay-backend/pkg/db/models"
	"github.com/mbongotech/cookpay-backend/pkg/enums"
)

// Event is the structured payload every state-changing operation reports.
type Event struct {
	Action      enums.AuditAction
	ActorID     *uuid.UUID
	SubjectType string
	SubjectID   uuid.UUID
	Metadata    any
}

// Sink receives audit events. Implementations must be safe to call inside a
// database transaction so the event commits atomically with the state change.
type Sink interface {
	Record(ctx context.Context, tx *gorm.DB, event Event) error
}

type gormSink struct {
	db *gorm.DB
}

// NewGormSink persists audit events to the audit_events table.
func NewGormSink(db *gorm.DB) (Sink, error) {
	if db == nil {
		return nil, fmt.Errorf("audit sink requires a database")
	}
	return &gormSink{db: db}, nil
}

func (s *gormSink) Record(ctx context.Context, tx *gorm.DB, event Event) error {
	if !event.Action.IsValid() {
		return fmt.Errorf("invalid audit action %q", event.Action)
	}
	if event.SubjectID == uuid.Nil {
		return fmt.Errorf("audit subject id is required")
	}

	var metadata json.RawMessage
	if event.Metadata != nil {
		encoded, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
		metadata = encoded
	}

	row := &models.AuditEvent{
		Action:      event.Action,
		ActorID:     event.ActorID,
		SubjectType: event.SubjectType,
		SubjectID:   event.SubjectID,
		Metadata:    metadata,
	}

	conn := s.db
	if tx != nil {
		conn = tx
	}
	return conn.WithContext(ctx).Create(row).Error
}

// NopSink discards events; used where auditing is optional.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(context.Context, *gorm.DB, Event) error { return nil }
