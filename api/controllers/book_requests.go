package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/zhanibekov/libris-backend/api/middleware"
	"github.com/zhanibekov/libris-backend/api/responses"
	"github.com/zhanibekov/libris-backend/api/validators"
	"github.com/zhanibekov/libris-backend/internal/requests"
	"github.com/zhanibekov/libris-backend/pkg/enums"
	pkgerrors "github.com/zhanibekov/libris-backend/pkg/errors"
	"github.com/zhanibekov/libris-backend/pkg/logger"
)

// BookRequestCreate handles POST /api/v1/book-requests for the member.
func BookRequestCreate(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		var body requests.CreateRequestInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.UserID = userID

		view, err := svc.CreateRequest(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// BookRequestListMine handles GET /api/v1/book-requests for the member.
func BookRequestListMine(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		views, err := svc.ListRequests(r.Context(), requests.ListFilter{UserID: &userID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, views)
	}
}

// BookRequestList handles GET /api/admin/v1/book-requests.
func BookRequestList(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var status *enums.RequestStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, err := enums.ParseRequestStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid request status").WithDetails(map[string]any{"field": "status"}))
				return
			}
			status = &parsed
		}

		views, err := svc.ListRequests(r.Context(), requests.ListFilter{Status: status})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, views)
	}
}

// BookRequestCancel handles DELETE /api/v1/book-requests/{requestId} for the
// member. Only the requester's own pending requests can be withdrawn.
func BookRequestCancel(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		id, err := validators.ParseURLUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.CancelRequest(r.Context(), id, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// BookRequestDelete handles DELETE /api/admin/v1/book-requests/{requestId}.
func BookRequestDelete(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseURLUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteRequest(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// BookRequestApprove handles POST /api/admin/v1/book-requests/{requestId}/approve.
func BookRequestApprove(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return decideBookRequest(logg, svc.ApproveRequest)
}

// BookRequestReject handles POST /api/admin/v1/book-requests/{requestId}/reject.
func BookRequestReject(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return decideBookRequest(logg, svc.RejectRequest)
}

func decideBookRequest(logg *logger.Logger, decide func(ctx context.Context, id uuid.UUID) (*requests.RequestView, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseURLUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := decide(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}
