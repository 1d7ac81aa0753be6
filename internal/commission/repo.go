package commission

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mbongotech/cookpay-backend/pkg/db/models"
)

// Repository manages commission change history rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, change *models.CommissionChange) error
	FindLatestByTenant(ctx context.Context, tenantID uuid.UUID) (*models.CommissionChange, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.CommissionChange, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a commission repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, change *models.CommissionChange) error {
	return r.db.WithContext(ctx).Create(change).Error
}

func (r *repository) FindLatestByTenant(ctx context.Context, tenantID uuid.UUID) (*models.CommissionChange, error) {
	var change models.CommissionChange
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC").
		First(&change).Error
	if err != nil {
		return nil, err
	}
	return &change, nil
}

func (r *repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.CommissionChange, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.CommissionChange
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
