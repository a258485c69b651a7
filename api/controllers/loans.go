package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zhanibekov/libris-backend/api/middleware"
	"github.com/zhanibekov/libris-backend/api/responses"
	"github.com/zhanibekov/libris-backend/api/validators"
	"github.com/zhanibekov/libris-backend/internal/loans"
	"github.com/zhanibekov/libris-backend/pkg/enums"
	pkgerrors "github.com/zhanibekov/libris-backend/pkg/errors"
	"github.com/zhanibekov/libris-backend/pkg/logger"
	"github.com/zhanibekov/libris-backend/pkg/pagination"
)

type issueLoanRequest struct {
	BookID  uuid.UUID  `json:"book_id" validate:"required"`
	UserID  uuid.UUID  `json:"user_id" validate:"required"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// LoanIssue handles POST /api/admin/v1/loans.
func LoanIssue(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body issueLoanRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.IssueBook(r.Context(), loans.IssueBookInput{
			BookID:  body.BookID,
			UserID:  body.UserID,
			DueDate: body.DueDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// LoanReturn handles POST /api/admin/v1/loans/{loanId}/return.
func LoanReturn(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseURLUUID(r, "loanId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.ReturnLoan(r.Context(), loans.ReturnLoanInput{LoanID: id})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// LoanDetail handles GET /api/admin/v1/loans/{loanId}.
func LoanDetail(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseURLUUID(r, "loanId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetLoan(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// LoanList handles GET /api/admin/v1/loans with user/book/status filters.
func LoanList(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, err := buildLoanListInput(r, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListLoans(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// LoanListMine handles GET /api/v1/loans, scoped to the authenticated member.
func LoanListMine(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		input, err := buildLoanListInput(r, &userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListLoans(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// LoanListOverdue handles GET /api/admin/v1/loans/overdue. Overdue is derived
// from the due date at request time, never read from a stored flag.
func LoanListOverdue(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := svc.ListOverdue(r.Context(), time.Time{})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, views)
	}
}

func buildLoanListInput(r *http.Request, forcedUserID *uuid.UUID) (loans.ListLoansInput, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return loans.ListLoansInput{}, err
	}

	userID := forcedUserID
	if userID == nil {
		if userID, err = validators.ParseQueryUUID(r, "user_id"); err != nil {
			return loans.ListLoansInput{}, err
		}
	}
	bookID, err := validators.ParseQueryUUID(r, "book_id")
	if err != nil {
		return loans.ListLoansInput{}, err
	}

	var status *enums.LoanStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := enums.ParseLoanStatus(raw)
		if err != nil {
			return loans.ListLoansInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid loan status").WithDetails(map[string]any{"field": "status"})
		}
		status = &parsed
	}

	return loans.ListLoansInput{
		Filter: loans.ListFilter{
			UserID: userID,
			BookID: bookID,
			Status: status,
		},
		Page: pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		},
	}, nil
}
