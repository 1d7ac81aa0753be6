package payout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mbongotech/cookpay-backend/pkg/db/models"
	"github.com/mbongotech/cookpay-backend/pkg/enums"
)

// Repository manages withdrawal requests and payout tasks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateWithdrawal(ctx context.Context, withdrawal *models.WithdrawalRequest) error
	FindWithdrawal(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	FindWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	UpdateWithdrawal(ctx context.Context, withdrawal *models.WithdrawalRequest) error
	ListWithdrawalsByWallet(ctx context.Context, cookWalletID uuid.UUID, limit int) ([]models.WithdrawalRequest, error)

	CreateTask(ctx context.Context, task *models.PayoutTask) error
	FindTask(ctx context.Context, id uuid.UUID) (*models.PayoutTask, error)
	FindTaskForUpdate(ctx context.Context, id uuid.UUID) (*models.PayoutTask, error)
	FindTaskByWithdrawalForUpdate(ctx context.Context, withdrawalID uuid.UUID) (*models.PayoutTask, error)
	UpdateTask(ctx context.Context, task *models.PayoutTask) error
	ListPendingTasks(ctx context.Context, limit int) ([]models.PayoutTask, error)
	CountPendingTasks(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payout repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateWithdrawal(ctx context.Context, withdrawal *models.WithdrawalRequest) error {
	return r.db.WithContext(ctx).Create(withdrawal).Error
}

func (r *repository) FindWithdrawal(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var row models.WithdrawalRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var row models.WithdrawalRequest
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpdateWithdrawal(ctx context.Context, withdrawal *models.WithdrawalRequest) error {
	return r.db.WithContext(ctx).Save(withdrawal).Error
}

func (r *repository) ListWithdrawalsByWallet(ctx context.Context, cookWalletID uuid.UUID, limit int) ([]models.WithdrawalRequest, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.WithdrawalRequest
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

func (r *repository) CreateTask(ctx context.Context, task *models.PayoutTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *repository) FindTask(ctx context.Context, id uuid.UUID) (*models.PayoutTask, error) {
	var row models.PayoutTask
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindTaskForUpdate(ctx context.Context, id uuid.UUID) (*models.PayoutTask, error) {
	var row models.PayoutTask
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindTaskByWithdrawalForUpdate(ctx context.Context, withdrawalID uuid.UUID) (*models.PayoutTask, error) {
	var row models.PayoutTask
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("withdrawal_request_id = ?", withdrawalID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpdateTask(ctx context.Context, task *models.PayoutTask) error {
	return r.db.WithContext(ctx).Save(task).Error
}

func (r *repository) ListPendingTasks(ctx context.Context, limit int) ([]models.PayoutTask, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.PayoutTask
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.PayoutTaskStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountPendingTasks(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PayoutTask{}).
		Where("status = ?", enums.PayoutTaskStatusPending).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
