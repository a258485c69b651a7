package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/zhanibekov/libris-backend/api/responses"
	"github.com/zhanibekov/libris-backend/api/validators"
	"github.com/zhanibekov/libris-backend/internal/books"
	pkgerrors "github.com/zhanibekov/libris-backend/pkg/errors"
	"github.com/zhanibekov/libris-backend/pkg/logger"
	"github.com/zhanibekov/libris-backend/pkg/pagination"
)

type createBookRequest struct {
	Title         string      `json:"title" validate:"required"`
	ISBN          *string     `json:"isbn,omitempty"`
	Description   *string     `json:"description,omitempty"`
	Publisher     *string     `json:"publisher,omitempty"`
	PublishedYear *int        `json:"published_year,omitempty"`
	CoverURL      *string     `json:"cover_url,omitempty"`
	Quantity      int         `json:"quantity" validate:"min=0"`
	AuthorIDs     []uuid.UUID `json:"author_ids,omitempty"`
	CategoryIDs   []uuid.UUID `json:"category_ids,omitempty"`
}

type updateBookRequest struct {
	Title         *string     `json:"title,omitempty"`
	ISBN          *string     `json:"isbn,omitempty"`
	Description   *string     `json:"description,omitempty"`
	Publisher     *string     `json:"publisher,omitempty"`
	PublishedYear *int        `json:"published_year,omitempty"`
	CoverURL      *string     `json:"cover_url,omitempty"`
	Quantity      *int        `json:"quantity,omitempty"`
	AuthorIDs     []uuid.UUID `json:"author_ids,omitempty"`
	CategoryIDs   []uuid.UUID `json:"category_ids,omitempty"`
}

// BookCreate handles POST /api/admin/v1/books.
func BookCreate(svc books.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createBookRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.CreateBook(r.Context(), books.CreateBookInput{
			Title:         body.Title,
			ISBN:          body.ISBN,
			Description:   body.Description,
			Publisher:     body.Publisher,
			PublishedYear: body.PublishedYear,
			CoverURL:      body.CoverURL,
			Quantity:      body.Quantity,
			AuthorIDs:     body.AuthorIDs,
			CategoryIDs:   body.CategoryIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// BookUpdate handles PUT /api/admin/v1/books/{bookId}.
func BookUpdate(svc books.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseURLUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateBookRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpdateBook(r.Context(), books.UpdateBookInput{
			ID:            id,
			Title:         body.Title,
			ISBN:          body.ISBN,
			Description:   body.Description,
			Publisher:     body.Publisher,
			PublishedYear: body.PublishedYear,
			CoverURL:      body.CoverURL,
			Quantity:      body.Quantity,
			AuthorIDs:     body.AuthorIDs,
			CategoryIDs:   body.CategoryIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// BookDelete handles DELETE /api/admin/v1/books/{bookId}.
func BookDelete(svc books.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseURLUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteBook(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// BookDetail handles GET /api/v1/books/{bookId}.
func BookDetail(svc books.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseURLUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetBook(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// BookList handles GET /api/v1/books with search/filter/pagination parameters.
func BookList(svc books.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		categoryID, err := validators.ParseQueryUUID(r, "category_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		authorID, err := validators.ParseQueryUUID(r, "author_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		availableOnly, err := validators.ParseQueryBool(r, "available")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListBooks(r.Context(), books.ListBooksInput{
			Filter: books.ListFilter{
				Search:        r.URL.Query().Get("q"),
				CategoryID:    categoryID,
				AuthorID:      authorID,
				AvailableOnly: availableOnly,
			},
			Page: pagination.Params{
				Limit:  limit,
				Cursor: r.URL.Query().Get("cursor"),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}
