package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zhanibekov/libris-backend/pkg/db/models"
	"github.com/zhanibekov/libris-backend/pkg/enums"
	pkgerrors "github.com/zhanibekov/libris-backend/pkg/errors"
)

// RequestView is the transport shape for a book acquisition request.
type RequestView struct {
	ID        uuid.UUID           `json:"id"`
	UserID    uuid.UUID           `json:"user_id"`
	UserEmail string              `json:"user_email,omitempty"`
	Title     string              `json:"title"`
	Author    *string             `json:"author,omitempty"`
	Notes     *string             `json:"notes,omitempty"`
	Status    enums.RequestStatus `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// NewRequestView maps a persisted request to its transport shape.
func NewRequestView(request models.BookRequest) RequestView {
	view := RequestView{
		ID:        request.ID,
		UserID:    request.UserID,
		Title:     request.Title,
		Author:    request.Author,
		Notes:     request.Notes,
		Status:    request.Status,
		CreatedAt: request.CreatedAt,
		UpdatedAt: request.UpdatedAt,
	}
	if request.User != nil {
		view.UserEmail = request.User.Email
	}
	return view
}

// CreateRequestInput carries the fields a member submits for a new title.
type CreateRequestInput struct {
	UserID uuid.UUID `json:"-"`
	Title  string    `json:"title" validate:"required"`
	Author *string   `json:"author,omitempty"`
	Notes  *string   `json:"notes,omitempty"`
}

// Service exposes the book request workflow.
type Service interface {
	CreateRequest(ctx context.Context, input CreateRequestInput) (*RequestView, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*RequestView, error)
	ListRequests(ctx context.Context, filter ListFilter) ([]RequestView, error)
	ApproveRequest(ctx context.Context, id uuid.UUID) (*RequestView, error)
	RejectRequest(ctx context.Context, id uuid.UUID) (*RequestView, error)
	CancelRequest(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) error
	DeleteRequest(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService constructs a book request service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("requests repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateRequest(ctx context.Context, input CreateRequestInput) (*RequestView, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}

	request := &models.BookRequest{
		ID:     uuid.New(),
		UserID: input.UserID,
		Title:  title,
		Author: input.Author,
		Notes:  input.Notes,
		Status: enums.RequestStatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create book request")
	}

	view := NewRequestView(*request)
	return &view, nil
}

func (s *service) GetRequest(ctx context.Context, id uuid.UUID) (*RequestView, error) {
	request, err := s.findRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	view := NewRequestView(*request)
	return &view, nil
}

func (s *service) ListRequests(ctx context.Context, filter ListFilter) ([]RequestView, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid request status filter")
	}

	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list book requests")
	}

	views := make([]RequestView, 0, len(requests))
	for _, request := range requests {
		views = append(views, NewRequestView(request))
	}
	return views, nil
}

func (s *service) ApproveRequest(ctx context.Context, id uuid.UUID) (*RequestView, error) {
	return s.decide(ctx, id, enums.RequestStatusApproved)
}

func (s *service) RejectRequest(ctx context.Context, id uuid.UUID) (*RequestView, error) {
	return s.decide(ctx, id, enums.RequestStatusRejected)
}

func (s *service) decide(ctx context.Context, id uuid.UUID, status enums.RequestStatus) (*RequestView, error) {
	if _, err := s.findRequest(ctx, id); err != nil {
		return nil, err
	}

	decided, err := s.repo.Decide(ctx, id, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decide book request")
	}
	if !decided {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "request already decided")
	}

	return s.GetRequest(ctx, id)
}

// CancelRequest lets a member withdraw their own request before it is
// decided. Requests belonging to other members read as not found.
func (s *service) CancelRequest(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) error {
	request, err := s.findRequest(ctx, id)
	if err != nil {
		return err
	}
	if request.UserID != requesterID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "book request not found")
	}
	if request.Status != enums.RequestStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "request already decided")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete book request")
	}
	return nil
}

func (s *service) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	if _, err := s.findRequest(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete book request")
	}
	return nil
}

func (s *service) findRequest(ctx context.Context, id uuid.UUID) (*models.BookRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find book request")
	}
	return request, nil
}
