package loans

import (
	"time"

	"github.com/google/uuid"

	"github.com/zhanibekov/libris-backend/pkg/db/models"
	"github.com/zhanibekov/libris-backend/pkg/enums"
	"github.com/zhanibekov/libris-backend/pkg/pagination"
)

// LoanView is the API projection of a loan. Overdue is computed at render
// time from the due date.
type LoanView struct {
	ID         uuid.UUID        `json:"id"`
	BookID     uuid.UUID        `json:"book_id"`
	UserID     uuid.UUID        `json:"user_id"`
	Status     enums.LoanStatus `json:"status"`
	IssueDate  time.Time        `json:"issue_date"`
	DueDate    time.Time        `json:"due_date"`
	ReturnDate *time.Time       `json:"return_date,omitempty"`
	Overdue    bool             `json:"overdue"`
	BookTitle  *string          `json:"book_title,omitempty"`
	UserEmail  *string          `json:"user_email,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// LoanPage is a cursor-paginated listing of loans.
type LoanPage struct {
	Items      []LoanView `json:"items"`
	NextCursor *string    `json:"next_cursor,omitempty"`
}

// NewLoanView projects a loan model for API consumers.
func NewLoanView(loan models.Loan, now time.Time) LoanView {
	view := LoanView{
		ID:         loan.ID,
		BookID:     loan.BookID,
		UserID:     loan.UserID,
		Status:     loan.Status,
		IssueDate:  loan.IssueDate,
		DueDate:    loan.DueDate,
		ReturnDate: loan.ReturnDate,
		Overdue:    loan.IsOverdue(now),
		CreatedAt:  loan.CreatedAt,
		UpdatedAt:  loan.UpdatedAt,
	}
	if loan.Book != nil {
		view.BookTitle = &loan.Book.Title
	}
	if loan.User != nil {
		view.UserEmail = &loan.User.Email
	}
	return view
}

// NewLoanPage projects a page of loans, trimming the lookahead row and
// emitting the next cursor when more rows exist.
func NewLoanPage(loans []models.Loan, limit int, now time.Time) LoanPage {
	normalized := pagination.NormalizeLimit(limit)
	hasMore := len(loans) > normalized
	if hasMore {
		loans = loans[:normalized]
	}

	items := make([]LoanView, 0, len(loans))
	for _, loan := range loans {
		items = append(items, NewLoanView(loan, now))
	}

	page := LoanPage{Items: items}
	if hasMore && len(loans) > 0 {
		last := loans[len(loans)-1]
		cursor := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		page.NextCursor = &cursor
	}
	return page
}
