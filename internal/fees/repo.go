package fees

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zhanibekov/libris-backend/pkg/db/models"
	"github.com/zhanibekov/libris-backend/pkg/enums"
)

// ListFilter narrows fee listings.
type ListFilter struct {
	UserID *uuid.UUID
	Status *enums.FeeStatus
}

// Repository manages persistence for fees.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, fee *models.Fee) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Fee, error)
	List(ctx context.Context, filter ListFilter) ([]models.Fee, error)
	HasOverdueFine(ctx context.Context, loanID uuid.UUID) (bool, error)
	MarkPaid(ctx context.Context, feeID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a fee repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, fee *models.Fee) error {
	return r.db.WithContext(ctx).Create(fee).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Fee, error) {
	var fee models.Fee
	if err := r.db.WithContext(ctx).
		Preload("Loan").
		First(&fee, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &fee, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Fee, error) {
	query := r.db.WithContext(ctx).Model(&models.Fee{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var fees []models.Fee
	if err := query.Order("created_at DESC").Find(&fees).Error; err != nil {
		return nil, err
	}
	return fees, nil
}

func (r *repository) HasOverdueFine(ctx context.Context, loanID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Fee{}).
		Where("loan_id = ? AND type = ?", loanID, enums.FeeTypeOverdueFine).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkPaid flips an unpaid fee to paid. The status guard makes the
// transition single-shot.
func (r *repository) MarkPaid(ctx context.Context, feeID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Fee{}).
		Where("id = ? AND status = ?", feeID, enums.FeeStatusUnpaid).
		Updates(map[string]any{
			"status":  enums.FeeStatusPaid,
			"paid_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
