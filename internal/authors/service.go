package authors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zhanibekov/libris-backend/pkg/db"
	"github.com/zhanibekov/libris-backend/pkg/db/models"
	pkgerrors "github.com/zhanibekov/libris-backend/pkg/errors"
)

// AuthorView is the API projection of an author.
type AuthorView struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Bio       *string   `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service defines author catalog operations.
type Service interface {
	CreateAuthor(ctx context.Context, name string, bio *string) (*AuthorView, error)
	UpdateAuthor(ctx context.Context, id uuid.UUID, name *string, bio *string) (*AuthorView, error)
	DeleteAuthor(ctx context.Context, id uuid.UUID) error
	GetAuthor(ctx context.Context, id uuid.UUID) (*AuthorView, error)
	ListAuthors(ctx context.Context) ([]AuthorView, error)
}

type service struct {
	repo Repository
}

// NewService wires the author service with its repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("authors repository required")
	}
	return &service{repo: repo}, nil
}

func newAuthorView(author models.Author) AuthorView {
	return AuthorView{
		ID:        author.ID,
		Name:      author.Name,
		Bio:       author.Bio,
		CreatedAt: author.CreatedAt,
		UpdatedAt: author.UpdatedAt,
	}
}

func (s *service) CreateAuthor(ctx context.Context, name string, bio *string) (*AuthorView, error) {
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}

	author := &models.Author{ID: uuid.New(), Name: name, Bio: bio}
	if err := s.repo.Create(ctx, author); err != nil {
		if db.IsUniqueViolation(err, "idx_authors_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "author already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create author")
	}

	view := newAuthorView(*author)
	return &view, nil
}

func (s *service) UpdateAuthor(ctx context.Context, id uuid.UUID, name *string, bio *string) (*AuthorView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "author id required")
	}
	if name != nil && *name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
	}

	author, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "author not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load author")
	}

	if name != nil {
		author.Name = *name
	}
	if bio != nil {
		author.Bio = bio
	}

	if err := s.repo.Update(ctx, author); err != nil {
		if db.IsUniqueViolation(err, "idx_authors_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "author already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update author")
	}

	view := newAuthorView(*author)
	return &view, nil
}

func (s *service) DeleteAuthor(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "author id required")
	}

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "author not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load author")
	}

	linked, err := s.repo.CountBooks(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count linked books")
	}
	if linked > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "author has linked books")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete author")
	}
	return nil
}

func (s *service) GetAuthor(ctx context.Context, id uuid.UUID) (*AuthorView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "author id required")
	}

	author, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "author not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load author")
	}

	view := newAuthorView(*author)
	return &view, nil
}

func (s *service) ListAuthors(ctx context.Context) ([]AuthorView, error) {
	authors, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list authors")
	}

	views := make([]AuthorView, 0, len(authors))
	for _, author := range authors {
		views = append(views, newAuthorView(author))
	}
	return views, nil
}
