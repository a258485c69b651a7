package loans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zhanibekov/libris-backend/pkg/db/models"
	"github.com/zhanibekov/libris-backend/pkg/enums"
	"github.com/zhanibekov/libris-backend/pkg/pagination"
)

// ListFilter narrows loan listings.
type ListFilter struct {
	UserID *uuid.UUID
	BookID *uuid.UUID
	Status *enums.LoanStatus
}

// Repository manages persistence for loans and the availability counters
// they guard.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, loan *models.Loan) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Loan, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]models.Loan, error)

	FindBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)

	DecrementAvailability(ctx context.Context, bookID uuid.UUID) (bool, error)
	IncrementAvailability(ctx context.Context, bookID uuid.UUID) (bool, error)
	MarkReturned(ctx context.Context, loanID uuid.UUID, returnedAt time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a loan repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	if err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("User").
		First(&loan, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Loan, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Preload("Book").
		Preload("User")

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.BookID != nil {
		query = query.Where("book_id = ?", *filter.BookID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	var loans []models.Loan
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&loans).Error; err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *repository) ListOverdue(ctx context.Context, asOf time.Time) ([]models.Loan, error) {
	var loans []models.Loan
	if err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("User").
		Where("status = ? AND due_date < ?", enums.LoanStatusIssued, asOf).
		Order("due_date ASC").
		Find(&loans).Error; err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *repository) FindBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repository) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// DecrementAvailability takes one copy off the shelf. The guard in the WHERE
// clause makes the update a no-op when nothing is available, so concurrent
// issues can never push available_quantity below zero.
func (r *repository) DecrementAvailability(ctx context.Context, bookID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ? AND available_quantity > 0", bookID).
		UpdateColumn("available_quantity", gorm.Expr("available_quantity - 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IncrementAvailability puts a copy back. The guard refuses to move the
// counter above the total quantity.
func (r *repository) IncrementAvailability(ctx context.Context, bookID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ? AND available_quantity < quantity", bookID).
		UpdateColumn("available_quantity", gorm.Expr("available_quantity + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkReturned flips an issued loan to returned. The status guard makes the
// transition single-shot under concurrent return calls.
func (r *repository) MarkReturned(ctx context.Context, loanID uuid.UUID, returnedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ? AND status = ?", loanID, enums.LoanStatusIssued).
		Updates(map[string]any{
			"status":      enums.LoanStatusReturned,
			"return_date": returnedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
