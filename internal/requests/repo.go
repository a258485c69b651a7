package requests

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zhanibekov/libris-backend/pkg/db/models"
	"github.com/zhanibekov/libris-backend/pkg/enums"
)

// ListFilter narrows book request listings.
type ListFilter struct {
	UserID *uuid.UUID
	Status *enums.RequestStatus
}

// Repository exposes persistence operations for book acquisition requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.BookRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.BookRequest, error)
	List(ctx context.Context, filter ListFilter) ([]models.BookRequest, error)
	Decide(ctx context.Context, id uuid.UUID, status enums.RequestStatus) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a book request repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.BookRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.BookRequest, error) {
	var request models.BookRequest
	err := r.db.WithContext(ctx).
		Preload("User").
		First(&request, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.BookRequest, error) {
	query := r.db.WithContext(ctx).Model(&models.BookRequest{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var requests []models.BookRequest
	if err := query.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// Decide flips a pending request to the provided terminal status. It returns
// false when the request was already decided.
func (r *repository) Decide(ctx context.Context, id uuid.UUID, status enums.RequestStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BookRequest{}).
		Where("id = ? AND status = ?", id, enums.RequestStatusPending).
		UpdateColumn("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.BookRequest{}, "id = ?", id).Error
}
