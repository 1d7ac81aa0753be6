package clearance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mbongotech/cookpay-backend/pkg/db/models"
)

// Repository manages order clearance rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, clearance *models.OrderClearance) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderClearance, error)
	FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.OrderClearance, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.OrderClearance, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]models.OrderClearance, error)
	Update(ctx context.Context, clearance *models.OrderClearance) error
	ListByWallet(ctx context.Context, cookWalletID uuid.UUID, limit int) ([]models.OrderClearance, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a clearance repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, clearance *models.OrderClearance) error {
	return r.db.WithContext(ctx).Create(clearance).Error
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderClearance, error) {
	var row models.OrderClearance
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.OrderClearance, error) {
	var row models.OrderClearance
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.OrderClearance, error) {
	var row models.OrderClearance
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindDue lists clearances whose hold window has elapsed and that are still
// active. Read without locks; the sweep re-checks state under a row lock.
func (r *repository) FindDue(ctx context.Context, now time.Time, limit int) ([]models.OrderClearance, error) {
	var rows []models.OrderClearance
	err := r.db.WithContext(ctx).
		Where("withdrawable_at <= ? AND NOT is_cleared AND NOT is_paused AND NOT is_cancelled", now).
		Order("withdrawable_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, clearance *models.OrderClearance) error {
	return r.db.WithContext(ctx).Save(clearance).Error
}

func (r *repository) ListByWallet(ctx context.Context, cookWalletID uuid.UUID, limit int) ([]models.OrderClearance, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.OrderClearance
	err := r.db.WithContext(ctx).
		Where("cook_wallet_id = ?", cookWalletID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
