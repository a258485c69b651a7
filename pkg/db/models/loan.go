package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/zhanibekov/libris-backend/pkg/enums"
)

// Loan records a single copy issued to a user. Status only moves
// issued -> returned; overdue is computed against DueDate, never stored.
type Loan struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	BookID     uuid.UUID        `gorm:"column:book_id;type:uuid;not null;index"`
	UserID     uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	Status     enums.LoanStatus `gorm:"column:status;not null;default:issued"`
	IssueDate  time.Time        `gorm:"column:issue_date;not null"`
	DueDate    time.Time        `gorm:"column:due_date;not null"`
	ReturnDate *time.Time       `gorm:"column:return_date"`
	Book       *Book            `gorm:"foreignKey:BookID"`
	User       *User            `gorm:"foreignKey:UserID"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// IsOverdue reports whether the loan is still out past its due date.
// A loan exactly at the due date is not overdue.
func (l Loan) IsOverdue(now time.Time) bool {
	return l.Status == enums.LoanStatusIssued && now.After(l.DueDate)
}
