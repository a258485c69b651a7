package books

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zhanibekov/libris-backend/pkg/db/models"
	"github.com/zhanibekov/libris-backend/pkg/enums"
	"github.com/zhanibekov/libris-backend/pkg/pagination"
)

// ListFilter narrows catalog listings.
type ListFilter struct {
	Search        string
	CategoryID    *uuid.UUID
	AuthorID      *uuid.UUID
	AvailableOnly bool
}

// Repository manages persistence for catalog titles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, book *models.Book) error
	Update(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Book, error)
	ReplaceAuthors(ctx context.Context, book *models.Book, authors []models.Author) error
	ReplaceCategories(ctx context.Context, book *models.Book, categories []models.Category) error
	FindAuthorsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Author, error)
	FindCategoriesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Category, error)
	CountIssuedLoans(ctx context.Context, bookID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a book repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

func (r *repository) Update(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Save(book).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Book{}, "id = ?", id).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).
		Preload("Authors").
		Preload("Categories").
		First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Book, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Preload("Authors").
		Preload("Categories")

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("title LIKE ? OR isbn LIKE ?", pattern, pattern)
	}
	if filter.CategoryID != nil {
		query = query.Where(
			"id IN (SELECT book_id FROM book_categories WHERE category_id = ?)",
			*filter.CategoryID,
		)
	}
	if filter.AuthorID != nil {
		query = query.Where(
			"id IN (SELECT book_id FROM book_authors WHERE author_id = ?)",
			*filter.AuthorID,
		)
	}
	if filter.AvailableOnly {
		query = query.Where("available_quantity > 0")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var books []models.Book
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *repository) ReplaceAuthors(ctx context.Context, book *models.Book, authors []models.Author) error {
	return r.db.WithContext(ctx).Model(book).Association("Authors").Replace(authors)
}

func (r *repository) ReplaceCategories(ctx context.Context, book *models.Book, categories []models.Category) error {
	return r.db.WithContext(ctx).Model(book).Association("Categories").Replace(categories)
}

func (r *repository) FindAuthorsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Author, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var authors []models.Author
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&authors).Error; err != nil {
		return nil, err
	}
	return authors, nil
}

func (r *repository) FindCategoriesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var categories []models.Category
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repository) CountIssuedLoans(ctx context.Context, bookID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("book_id = ? AND status = ?", bookID, enums.LoanStatusIssued).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
