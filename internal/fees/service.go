package fees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/zhanibekov/libris-backend/pkg/db/models"
	"github.com/zhanibekov/libris-backend/pkg/enums"
	pkgerrors "github.com/zhanibekov/libris-backend/pkg/errors"
)

// FeeView is the API projection of a fee.
type FeeView struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	LoanID      *uuid.UUID      `json:"loan_id,omitempty"`
	Type        enums.FeeType   `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description *string         `json:"description,omitempty"`
	Status      enums.FeeStatus `json:"status"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CreateFeeInput carries a manual fee assessment.
type CreateFeeInput struct {
	UserID      uuid.UUID
	LoanID      *uuid.UUID
	Type        enums.FeeType
	Amount      decimal.Decimal
	Description *string
}

// ListFeesInput narrows the fee listing.
type ListFeesInput struct {
	Filter ListFilter
}

// Service defines fee operations.
type Service interface {
	CreateFee(ctx context.Context, input CreateFeeInput) (*FeeView, error)
	PayFee(ctx context.Context, id uuid.UUID) (*FeeView, error)
	GetFee(ctx context.Context, id uuid.UUID) (*FeeView, error)
	ListFees(ctx context.Context, input ListFeesInput) ([]FeeView, error)
	AssessOverdueFine(ctx context.Context, loanID, userID uuid.UUID, amount decimal.Decimal) (bool, error)
}

type service struct {
	repo Repository
}

// NewService wires the fee service with its repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("fees repository required")
	}
	return &service{repo: repo}, nil
}

func newFeeView(fee models.Fee) FeeView {
	return FeeView{
		ID:          fee.ID,
		UserID:      fee.UserID,
		LoanID:      fee.LoanID,
		Type:        fee.Type,
		Amount:      fee.Amount,
		Description: fee.Description,
		Status:      fee.Status,
		PaidAt:      fee.PaidAt,
		CreatedAt:   fee.CreatedAt,
		UpdatedAt:   fee.UpdatedAt,
	}
}

func (s *service) CreateFee(ctx context.Context, input CreateFeeInput) (*FeeView, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid fee type %q", input.Type))
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount cannot be negative")
	}

	fee := &models.Fee{
		ID:          uuid.New(),
		UserID:      input.UserID,
		LoanID:      input.LoanID,
		Type:        input.Type,
		Amount:      input.Amount,
		Description: input.Description,
		Status:      enums.FeeStatusUnpaid,
	}
	if err := s.repo.Create(ctx, fee); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create fee")
	}

	view := newFeeView(*fee)
	return &view, nil
}

func (s *service) PayFee(ctx context.Context, id uuid.UUID) (*FeeView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fee id required")
	}

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fee not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fee")
	}

	paid, err := s.repo.MarkPaid(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark fee paid")
	}
	if !paid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "fee already paid")
	}

	fee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload fee")
	}

	view := newFeeView(*fee)
	return &view, nil
}

func (s *service) GetFee(ctx context.Context, id uuid.UUID) (*FeeView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fee id required")
	}

	fee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fee not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fee")
	}

	view := newFeeView(*fee)
	return &view, nil
}

func (s *service) ListFees(ctx context.Context, input ListFeesInput) ([]FeeView, error) {
	if input.Filter.Status != nil && !input.Filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid fee status %q", *input.Filter.Status))
	}

	fees, err := s.repo.List(ctx, input.Filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list fees")
	}

	views := make([]FeeView, 0, len(fees))
	for _, fee := range fees {
		views = append(views, newFeeView(fee))
	}
	return views, nil
}

// AssessOverdueFine creates an overdue fine for the loan unless one already
// exists. Returns true when a new fine was recorded, so repeated sweeps stay
// idempotent.
func (s *service) AssessOverdueFine(ctx context.Context, loanID, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	if loanID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}
	if userID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if amount.IsNegative() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "amount cannot be negative")
	}

	exists, err := s.repo.HasOverdueFine(ctx, loanID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing fine")
	}
	if exists {
		return false, nil
	}

	description := "overdue loan fine"
	fee := &models.Fee{
		ID:          uuid.New(),
		UserID:      userID,
		LoanID:      &loanID,
		Type:        enums.FeeTypeOverdueFine,
		Amount:      amount,
		Description: &description,
		Status:      enums.FeeStatusUnpaid,
	}
	if err := s.repo.Create(ctx, fee); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create fine")
	}
	return true, nil
}
