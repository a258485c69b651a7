package books

import (
	"time"

	"github.com/google/uuid"

	"github.com/zhanibekov/libris-backend/pkg/db/models"
	"github.com/zhanibekov/libris-backend/pkg/pagination"
)

// AuthorRef is the embedded author projection on a book.
type AuthorRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// CategoryRef is the embedded category projection on a book.
type CategoryRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// BookView is the API projection of a catalog title.
type BookView struct {
	ID                uuid.UUID     `json:"id"`
	Title             string        `json:"title"`
	ISBN              *string       `json:"isbn,omitempty"`
	Description       *string       `json:"description,omitempty"`
	Publisher         *string       `json:"publisher,omitempty"`
	PublishedYear     *int          `json:"published_year,omitempty"`
	CoverURL          *string       `json:"cover_url,omitempty"`
	Quantity          int           `json:"quantity"`
	AvailableQuantity int           `json:"available_quantity"`
	Authors           []AuthorRef   `json:"authors"`
	Categories        []CategoryRef `json:"categories"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// BookPage is a cursor-paginated listing of titles.
type BookPage struct {
	Items      []BookView `json:"items"`
	NextCursor *string    `json:"next_cursor,omitempty"`
}

// NewBookView projects a book model for API consumers.
func NewBookView(book models.Book) BookView {
	authors := make([]AuthorRef, 0, len(book.Authors))
	for _, author := range book.Authors {
		authors = append(authors, AuthorRef{ID: author.ID, Name: author.Name})
	}
	categories := make([]CategoryRef, 0, len(book.Categories))
	for _, category := range book.Categories {
		categories = append(categories, CategoryRef{ID: category.ID, Name: category.Name})
	}

	return BookView{
		ID:                book.ID,
		Title:             book.Title,
		ISBN:              book.ISBN,
		Description:       book.Description,
		Publisher:         book.Publisher,
		PublishedYear:     book.PublishedYear,
		CoverURL:          book.CoverURL,
		Quantity:          book.Quantity,
		AvailableQuantity: book.AvailableQuantity,
		Authors:           authors,
		Categories:        categories,
		CreatedAt:         book.CreatedAt,
		UpdatedAt:         book.UpdatedAt,
	}
}

// NewBookPage projects a page of titles, trimming the lookahead row.
func NewBookPage(books []models.Book, limit int) BookPage {
	normalized := pagination.NormalizeLimit(limit)
	hasMore := len(books) > normalized
	if hasMore {
		books = books[:normalized]
	}

	items := make([]BookView, 0, len(books))
	for _, book := range books {
		items = append(items, NewBookView(book))
	}

	page := BookPage{Items: items}
	if hasMore && len(books) > 0 {
		last := books[len(books)-1]
		cursor := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		page.NextCursor = &cursor
	}
	return page
}
