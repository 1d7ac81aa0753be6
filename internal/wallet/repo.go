package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mbongotech/cookpay-backend/pkg/db/models"
	"github.com/mbongotech/cookpay-backend/pkg/enums"
	"github.com/mbongotech/cookpay-backend/pkg/pagination"
)

// Repository manages persistence for wallets and their ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateCookWallet(ctx context.Context, wallet *models.CookWallet) error
	FindCookWallet(ctx context.Context, id uuid.UUID) (*models.CookWallet, error)
	FindCookWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.CookWallet, error)
	FindCookWalletByTenantCook(ctx context.Context, tenantID, cookID uuid.UUID) (*models.CookWallet, error)
	UpdateCookWalletBalances(ctx context.Context, id uuid.UUID, total, withdrawable, unwithdrawable int64) error

	CreateClientWallet(ctx context.Context, wallet *models.ClientWallet) error
	FindClientWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.ClientWallet, error)
	FindClientWalletByClient(ctx context.Context, clientID uuid.UUID) (*models.ClientWallet, error)
	UpdateClientWalletBalances(ctx context.Context, id uuid.UUID, total, withdrawable, unwithdrawable int64) error

	CreateTransaction(ctx context.Context, txn *models.WalletTransaction) error
	ListTransactions(ctx context.Context, query ListTransactionsQuery) ([]models.WalletTransaction, *pagination.Cursor, error)
}

// ListTransactionsQuery filters the ledger listing.
type ListTransactionsQuery struct {
	WalletKind enums.WalletKind
	WalletID   uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateCookWallet(ctx context.Context, wallet *models.CookWallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) FindCookWallet(ctx context.Context, id uuid.UUID) (*models.CookWallet, error) {
	var wallet models.CookWallet
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindCookWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.CookWallet, error) {
	var wallet models.CookWallet
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindCookWalletByTenantCook(ctx context.Context, tenantID, cookID uuid.UUID) (*models.CookWallet, error) {
	var wallet models.CookWallet
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND cook_id = ?", tenantID, cookID).
		First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) UpdateCookWalletBalances(ctx context.Context, id uuid.UUID, total, withdrawable, unwithdrawable int64) error {
	return r.db.WithContext(ctx).
		Model(&models.CookWallet{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_balance":          total,
			"withdrawable_balance":   withdrawable,
			"unwithdrawable_balance": unwithdrawable,
		}).Error
}

func (r *repository) CreateClientWallet(ctx context.Context, wallet *models.ClientWallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) FindClientWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.ClientWallet, error) {
	var wallet models.ClientWallet
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindClientWalletByClient(ctx context.Context, clientID uuid.UUID) (*models.ClientWallet, error) {
	var wallet models.ClientWallet
	if err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) UpdateClientWalletBalances(ctx context.Context, id uuid.UUID, total, withdrawable, unwithdrawable int64) error {
	return r.db.WithContext(ctx).
		Model(&models.ClientWallet{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_balance":          total,
			"withdrawable_balance":   withdrawable,
			"unwithdrawable_balance": unwithdrawable,
		}).Error
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, query ListTransactionsQuery) ([]models.WalletTransaction, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(query.Limit)

	q := r.db.WithContext(ctx).
		Where("wallet_kind = ? AND wallet_id = ?", query.WalletKind, query.WalletID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if query.Cursor != nil {
		q = q.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID,
		)
	}

	var rows []models.WalletTransaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return rows, next, nil
}
