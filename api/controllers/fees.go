package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zhanibekov/libris-backend/api/middleware"
	"github.com/zhanibekov/libris-backend/api/responses"
	"github.com/zhanibekov/libris-backend/api/validators"
	"github.com/zhanibekov/libris-backend/internal/fees"
	"github.com/zhanibekov/libris-backend/pkg/enums"
	pkgerrors "github.com/zhanibekov/libris-backend/pkg/errors"
	"github.com/zhanibekov/libris-backend/pkg/logger"
)

type createFeeRequest struct {
	UserID      uuid.UUID  `json:"user_id" validate:"required"`
	LoanID      *uuid.UUID `json:"loan_id,omitempty"`
	Type        string     `json:"type" validate:"required"`
	Amount      string     `json:"amount" validate:"required"`
	Description *string    `json:"description,omitempty"`
}

// FeeCreate handles POST /api/admin/v1/fees.
func FeeCreate(svc fees.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createFeeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		feeType, err := enums.ParseFeeType(body.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid fee type").WithDetails(map[string]any{"field": "type"}))
			return
		}
		amount, err := decimal.NewFromString(body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a decimal string").WithDetails(map[string]any{"field": "amount"}))
			return
		}

		view, err := svc.CreateFee(r.Context(), fees.CreateFeeInput{
			UserID:      body.UserID,
			LoanID:      body.LoanID,
			Type:        feeType,
			Amount:      amount,
			Description: body.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// FeePay handles POST /api/admin/v1/fees/{feeId}/pay.
func FeePay(svc fees.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseURLUUID(r, "feeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.PayFee(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// FeeDetail handles GET /api/admin/v1/fees/{feeId}.
func FeeDetail(svc fees.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseURLUUID(r, "feeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetFee(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// FeeList handles GET /api/admin/v1/fees with user/status filters.
func FeeList(svc fees.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, err := buildFeeListInput(r, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views, err := svc.ListFees(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, views)
	}
}

// FeeListMine handles GET /api/v1/fees, scoped to the authenticated member.
func FeeListMine(svc fees.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		input, err := buildFeeListInput(r, &userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views, err := svc.ListFees(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, views)
	}
}

func buildFeeListInput(r *http.Request, forcedUserID *uuid.UUID) (fees.ListFeesInput, error) {
	userID := forcedUserID
	if userID == nil {
		var err error
		if userID, err = validators.ParseQueryUUID(r, "user_id"); err != nil {
			return fees.ListFeesInput{}, err
		}
	}

	var status *enums.FeeStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := enums.ParseFeeStatus(raw)
		if err != nil {
			return fees.ListFeesInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid fee status").WithDetails(map[string]any{"field": "status"})
		}
		status = &parsed
	}

	return fees.ListFeesInput{
		Filter: fees.ListFilter{
			UserID: userID,
			Status: status,
		},
	}, nil
}
