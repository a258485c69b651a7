package books

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zhanibekov/libris-backend/pkg/db"
	"github.com/zhanibekov/libris-backend/pkg/db/models"
	pkgerrors "github.com/zhanibekov/libris-backend/pkg/errors"
	"github.com/zhanibekov/libris-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines catalog operations on titles.
type Service interface {
	CreateBook(ctx context.Context, input CreateBookInput) (*BookView, error)
	UpdateBook(ctx context.Context, input UpdateBookInput) (*BookView, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
	GetBook(ctx context.Context, id uuid.UUID) (*BookView, error)
	ListBooks(ctx context.Context, input ListBooksInput) (*BookPage, error)
}

// CreateBookInput carries a new catalog entry.
type CreateBookInput struct {
	Title         string
	ISBN          *string
	Description   *string
	Publisher     *string
	PublishedYear *int
	CoverURL      *string
	Quantity      int
	AuthorIDs     []uuid.UUID
	CategoryIDs   []uuid.UUID
}

// UpdateBookInput carries a partial catalog update. Nil fields are left as-is.
type UpdateBookInput struct {
	ID            uuid.UUID
	Title         *string
	ISBN          *string
	Description   *string
	Publisher     *string
	PublishedYear *int
	CoverURL      *string
	Quantity      *int
	AuthorIDs     []uuid.UUID
	CategoryIDs   []uuid.UUID
}

// ListBooksInput narrows and pages the catalog listing.
type ListBooksInput struct {
	Filter ListFilter
	Page   pagination.Params
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService wires the catalog service with its dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("books repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) CreateBook(ctx context.Context, input CreateBookInput) (*BookView, error) {
	if input.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	var created *models.Book
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		authors, err := s.resolveAuthors(ctx, repo, input.AuthorIDs)
		if err != nil {
			return err
		}
		categories, err := s.resolveCategories(ctx, repo, input.CategoryIDs)
		if err != nil {
			return err
		}

		book := &models.Book{
			ID:                uuid.New(),
			Title:             input.Title,
			ISBN:              input.ISBN,
			Description:       input.Description,
			Publisher:         input.Publisher,
			PublishedYear:     input.PublishedYear,
			CoverURL:          input.CoverURL,
			Quantity:          input.Quantity,
			AvailableQuantity: input.Quantity,
			Authors:           authors,
			Categories:        categories,
		}
		if err := repo.Create(ctx, book); err != nil {
			if db.IsUniqueViolation(err, "idx_books_isbn") {
				return pkgerrors.New(pkgerrors.CodeConflict, "isbn already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create book")
		}
		created = book
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := NewBookView(*created)
	return &view, nil
}

func (s *service) UpdateBook(ctx context.Context, input UpdateBookInput) (*BookView, error) {
	if input.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	if input.Quantity != nil && *input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	var updated *models.Book
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		book, err := repo.FindByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
		}

		if input.Title != nil {
			book.Title = *input.Title
		}
		if input.ISBN != nil {
			book.ISBN = input.ISBN
		}
		if input.Description != nil {
			book.Description = input.Description
		}
		if input.Publisher != nil {
			book.Publisher = input.Publisher
		}
		if input.PublishedYear != nil {
			book.PublishedYear = input.PublishedYear
		}
		if input.CoverURL != nil {
			book.CoverURL = input.CoverURL
		}

		if input.Quantity != nil && *input.Quantity != book.Quantity {
			// Quantity changes move the availability counter by the same
			// delta; copies already out on loan stay out.
			issued := book.Quantity - book.AvailableQuantity
			if *input.Quantity < issued {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("quantity cannot drop below %d issued copies", issued))
			}
			book.AvailableQuantity = *input.Quantity - issued
			book.Quantity = *input.Quantity
		}

		if err := repo.Update(ctx, book); err != nil {
			if db.IsUniqueViolation(err, "idx_books_isbn") {
				return pkgerrors.New(pkgerrors.CodeConflict, "isbn already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update book")
		}

		if input.AuthorIDs != nil {
			authors, err := s.resolveAuthors(ctx, repo, input.AuthorIDs)
			if err != nil {
				return err
			}
			if err := repo.ReplaceAuthors(ctx, book, authors); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace authors")
			}
			book.Authors = authors
		}
		if input.CategoryIDs != nil {
			categories, err := s.resolveCategories(ctx, repo, input.CategoryIDs)
			if err != nil {
				return err
			}
			if err := repo.ReplaceCategories(ctx, book, categories); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace categories")
			}
			book.Categories = categories
		}

		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := NewBookView(*updated)
	return &view, nil
}

func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
		}

		issued, err := repo.CountIssuedLoans(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count issued loans")
		}
		if issued > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "book has issued loans")
		}

		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete book")
		}
		return nil
	})
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*BookView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}

	view := NewBookView(*book)
	return &view, nil
}

func (s *service) ListBooks(ctx context.Context, input ListBooksInput) (*BookPage, error) {
	books, err := s.repo.List(ctx, input.Filter, input.Page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list books")
	}

	page := NewBookPage(books, input.Page.Limit)
	return &page, nil
}

func (s *service) resolveAuthors(ctx context.Context, repo Repository, ids []uuid.UUID) ([]models.Author, error) {
	if len(ids) == 0 {
		return []models.Author{}, nil
	}
	authors, err := repo.FindAuthorsByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load authors")
	}
	if len(authors) != len(ids) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown author id")
	}
	return authors, nil
}

func (s *service) resolveCategories(ctx context.Context, repo Repository, ids []uuid.UUID) ([]models.Category, error) {
	if len(ids) == 0 {
		return []models.Category{}, nil
	}
	categories, err := repo.FindCategoriesByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load categories")
	}
	if len(categories) != len(ids) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown category id")
	}
	return categories, nil
}
