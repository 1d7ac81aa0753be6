package deduction

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mbongotech/cookpay-backend/pkg/db/models"
)

// Repository manages pending deduction rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, deduction *models.PendingDeduction) error
	FindOpenByWalletForUpdate(ctx context.Context, cookWalletID uuid.UUID) ([]models.PendingDeduction, error)
	Update(ctx context.Context, deduction *models.PendingDeduction) error
	ListByWallet(ctx context.Context, cookWalletID uuid.UUID, includeSettled bool) ([]models.PendingDeduction, error)
	SumOpenByWallet(ctx context.Context, cookWalletID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a deduction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, deduction *models.PendingDeduction) error {
	return r.db.WithContext(ctx).Create(deduction).Error
}

// FindOpenByWalletForUpdate locks the wallet's open deductions in creation
// order so settlement consumes the oldest debt first.
func (r *repository) FindOpenByWalletForUpdate(ctx context.Context, cookWalletID uuid.UUID) ([]models.PendingDeduction, error) {
	var rows []models.PendingDeduction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("cook_wallet_id = ? AND remaining_amount > 0", cookWalletID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, deduction *models.PendingDeduction) error {
	return r.db.WithContext(ctx).Save(deduction).Error
}

func (r *repository) ListByWallet(ctx context.Context, cookWalletID uuid.UUID, includeSettled bool) ([]models.PendingDeduction, error) {
	q := r.db.WithContext(ctx).Where("cook_wallet_id = ?", cookWalletID)
	if !includeSettled {
		q = q.Where("remaining_amount > 0")
	}

	var rows []models.PendingDeduction
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) SumOpenByWallet(ctx context.Context, cookWalletID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.PendingDeduction{}).
		Where("cook_wallet_id = ? AND remaining_amount > 0", cookWalletID).
		Select("COALESCE(SUM(remaining_amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
