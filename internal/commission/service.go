package commission

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mbongotech/cookpay-backend/internal/audit"
	"github.com/mbongotech/cookpay-backend/pkg/db"
	"github.com/mbongotech/cookpay-backend/pkg/db/models"
	"github.com/mbongotech/cookpay-backend/pkg/enums"
	apperrors "github.com/mbongotech/cookpay-backend/pkg/errors"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
)

var (
	minRate  = decimal.Zero
	maxRate  = decimal.NewFromInt(50)
	rateStep = decimal.RequireFromString("0.5")
)

// SetRateResult reports the outcome of a rate change request.
type SetRateResult struct {
	Change *models.CommissionChange
	// PendingSplitReview is true when the rate actually changed; orders whose
	// commission was captured at the old rate keep that split, so operators
	// may want to review anything still in the hold window.
	PendingSplitReview bool
}

// Service owns the per-tenant commission rate. The current rate is read from
// the newest change row; tenants with no history use the platform default.
type Service interface {
	CurrentRate(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (decimal.Decimal, error)
	SetRate(ctx context.Context, tenantID uuid.UUID, newRate decimal.Decimal, changedBy uuid.UUID, reason string) (*SetRateResult, error)
	ResetToDefault(ctx context.Context, tenantID uuid.UUID, changedBy uuid.UUID, reason string) (*SetRateResult, error)
	History(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.CommissionChange, error)
	DefaultRate() decimal.Decimal
}

// ServiceParams collects the service dependencies.
type ServiceParams struct {
	Repo        Repository
	DB          *db.Client
	Audit       audit.Sink
	Logger      *logger.Logger
	DefaultRate string
}

type service struct {
	repo        Repository
	db          *db.Client
	audit       audit.Sink
	logger      *logger.Logger
	defaultRate decimal.Decimal
}

// NewService validates dependencies and constructs the commission service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("commission service requires a repository")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("commission service requires a database")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("commission service requires an audit sink")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("commission service requires a logger")
	}

	defaultRate, err := decimal.NewFromString(strings.TrimSpace(params.DefaultRate))
	if err != nil {
		return nil, fmt.Errorf("invalid default commission rate %q: %w", params.DefaultRate, err)
	}
	if err := validateRate(defaultRate); err != nil {
		return nil, fmt.Errorf("invalid default commission rate %q: %w", params.DefaultRate, err)
	}

	return &service{
		repo:        params.Repo,
		db:          params.DB,
		audit:       params.Audit,
		logger:      params.Logger,
		defaultRate: defaultRate,
	}, nil
}

func (s *service) DefaultRate() decimal.Decimal {
	return s.defaultRate
}

func (s *service) CurrentRate(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (decimal.Decimal, error) {
	if tenantID == uuid.Nil {
		return decimal.Zero, apperrors.New(apperrors.CodeValidation, "tenant id is required")
	}

	latest, err := s.repo.WithTx(tx).FindLatestByTenant(ctx, tenantID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return s.defaultRate, nil
		}
		return decimal.Zero, apperrors.Wrap(apperrors.CodeInternal, err, "load commission rate")
	}
	return latest.NewRate, nil
}

func (s *service) SetRate(ctx context.Context, tenantID uuid.UUID, newRate decimal.Decimal, changedBy uuid.UUID, reason string) (*SetRateResult, error) {
	if tenantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "tenant id is required")
	}
	if changedBy == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "changed_by is required")
	}
	if err := validateRate(newRate); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid commission rate")
	}

	var result SetRateResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.CurrentRate(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		// Setting the same rate again is a no-op, no history row is written.
		if current.Equal(newRate) {
			return nil
		}

		change := &models.CommissionChange{
			TenantID:  tenantID,
			OldRate:   current,
			NewRate:   newRate,
			ChangedBy: changedBy,
		}
		if trimmed := strings.TrimSpace(reason); trimmed != "" {
			change.Reason = &trimmed
		}
		if err := s.repo.WithTx(tx).Create(ctx, change); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "record commission change")
		}

		if err := s.audit.Record(ctx, tx, audit.Event{
			Action:      enums.AuditActionCommissionRateChanged,
			ActorID:     &changedBy,
			SubjectType: "tenant",
			SubjectID:   tenantID,
			Metadata: map[string]string{
				"old_rate": current.String(),
				"new_rate": newRate.String(),
			},
		}); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "audit commission change")
		}

		result = SetRateResult{Change: change, PendingSplitReview: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Change != nil {
		s.logger.Info(s.logger.WithTenantID(ctx, tenantID.String()),
			fmt.Sprintf("commission rate changed to %s", newRate.String()))
	}
	return &result, nil
}

func (s *service) ResetToDefault(ctx context.Context, tenantID uuid.UUID, changedBy uuid.UUID, reason string) (*SetRateResult, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "reset to platform default"
	}
	return s.SetRate(ctx, tenantID, s.defaultRate, changedBy, reason)
}

func (s *service) History(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.CommissionChange, error) {
	if tenantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "tenant id is required")
	}
	rows, err := s.repo.ListByTenant(ctx, tenantID, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "list commission changes")
	}
	return rows, nil
}

// validateRate enforces the allowed band: 0 to 50 percent in half-point steps.
func validateRate(rate decimal.Decimal) error {
	if rate.LessThan(minRate) || rate.GreaterThan(maxRate) {
		return fmt.Errorf("rate %s outside allowed range [0, 50]", rate.String())
	}
	if !rate.Mod(rateStep).IsZero() {
		return fmt.Errorf("rate %s is not a multiple of 0.5", rate.String())
	}
	return nil
}

// Split applies a commission rate to a gross amount. Commission rounds down
// to the nearest whole unit so the cook never loses a franc to rounding.
func Split(gross int64, rate decimal.Decimal) (commission int64, net int64) {
	if gross <= 0 {
		return 0, gross
	}
	commission = decimal.NewFromInt(gross).
		Mul(rate).
		Div(decimal.NewFromInt(100)).
		Floor().
		IntPart()
	return commission, gross - commission
}
