package loans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zhanibekov/libris-backend/pkg/config"
	"github.com/zhanibekov/libris-backend/pkg/db/models"
	"github.com/zhanibekov/libris-backend/pkg/enums"
	pkgerrors "github.com/zhanibekov/libris-backend/pkg/errors"
	"github.com/zhanibekov/libris-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the lending ledger operations.
type Service interface {
	IssueBook(ctx context.Context, input IssueBookInput) (*LoanView, error)
	ReturnLoan(ctx context.Context, input ReturnLoanInput) (*LoanView, error)
	GetLoan(ctx context.Context, id uuid.UUID) (*LoanView, error)
	ListLoans(ctx context.Context, input ListLoansInput) (*LoanPage, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]LoanView, error)
}

// IssueBookInput captures the data required to issue a copy to a user.
type IssueBookInput struct {
	BookID  uuid.UUID
	UserID  uuid.UUID
	DueDate *time.Time
}

// ReturnLoanInput identifies the loan being closed.
type ReturnLoanInput struct {
	LoanID uuid.UUID
}

// ListLoansInput narrows and pages the loan listing.
type ListLoansInput struct {
	Filter ListFilter
	Page   pagination.Params
}

type service struct {
	repo    Repository
	tx      txRunner
	library config.LibraryConfig
	clock   func() time.Time
}

// NewService wires the lending ledger with its dependencies.
func NewService(repo Repository, tx txRunner, library config.LibraryConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("loans repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		library: library,
		clock:   time.Now,
	}, nil
}

func (s *service) IssueBook(ctx context.Context, input IssueBookInput) (*LoanView, error) {
	if input.BookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	now := s.clock().UTC()
	dueDate := now.Add(s.library.LoanPeriod())
	if input.DueDate != nil {
		if !input.DueDate.After(now) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "due date must be in the future")
		}
		dueDate = input.DueDate.UTC()
	}

	var loan *models.Loan
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		book, err := repo.FindBook(ctx, input.BookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
		}

		if _, err := repo.FindUser(ctx, input.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
		}

		// The guarded decrement is the availability gate: it only lands
		// when a copy is actually on the shelf.
		taken, err := repo.DecrementAvailability(ctx, book.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement availability")
		}
		if !taken {
			return pkgerrors.New(pkgerrors.CodeUnavailable, "no copies available")
		}

		loan = &models.Loan{
			ID:        uuid.New(),
			BookID:    book.ID,
			UserID:    input.UserID,
			Status:    enums.LoanStatusIssued,
			IssueDate: now,
			DueDate:   dueDate,
		}
		if err := repo.Create(ctx, loan); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create loan")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := NewLoanView(*loan, now)
	return &view, nil
}

func (s *service) ReturnLoan(ctx context.Context, input ReturnLoanInput) (*LoanView, error) {
	if input.LoanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}

	now := s.clock().UTC()

	var returned *models.Loan
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loan, err := repo.FindByID(ctx, input.LoanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan")
		}

		flipped, err := repo.MarkReturned(ctx, loan.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark loan returned")
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeAlreadyReturned, "loan already returned")
		}

		// Every issued loan took exactly one copy, so the increment must
		// land. A refused increment means the counters drifted; roll back
		// rather than exceed the total quantity.
		restored, err := repo.IncrementAvailability(ctx, loan.BookID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment availability")
		}
		if !restored {
			return pkgerrors.New(pkgerrors.CodeInvariant, "availability counter at capacity for issued loan")
		}

		loan.Status = enums.LoanStatusReturned
		loan.ReturnDate = &now
		returned = loan
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := NewLoanView(*returned, now)
	return &view, nil
}

func (s *service) GetLoan(ctx context.Context, id uuid.UUID) (*LoanView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}

	loan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan")
	}

	view := NewLoanView(*loan, s.clock().UTC())
	return &view, nil
}

func (s *service) ListLoans(ctx context.Context, input ListLoansInput) (*LoanPage, error) {
	if input.Filter.Status != nil && !input.Filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid loan status %q", *input.Filter.Status))
	}

	loans, err := s.repo.List(ctx, input.Filter, input.Page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list loans")
	}

	page := NewLoanPage(loans, input.Page.Limit, s.clock().UTC())
	return &page, nil
}

func (s *service) ListOverdue(ctx context.Context, asOf time.Time) ([]LoanView, error) {
	if asOf.IsZero() {
		asOf = s.clock().UTC()
	}

	loans, err := s.repo.ListOverdue(ctx, asOf)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list overdue loans")
	}

	views := make([]LoanView, 0, len(loans))
	for _, loan := range loans {
		views = append(views, NewLoanView(loan, asOf))
	}
	return views, nil
}
