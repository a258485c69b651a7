package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zhanibekov/libris-backend/pkg/enums"
)

// Fee is a monetary charge against a user, optionally tied to a loan.
type Fee struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	LoanID      *uuid.UUID      `gorm:"column:loan_id;type:uuid;index"`
	Type        enums.FeeType   `gorm:"column:type;not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(10,2);not null"`
	Description *string         `gorm:"column:description"`
	Status      enums.FeeStatus `gorm:"column:status;not null;default:unpaid"`
	PaidAt      *time.Time      `gorm:"column:paid_at"`
	Loan        *Loan           `gorm:"foreignKey:LoanID"`
	User        *User           `gorm:"foreignKey:UserID"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
