package models

import (
	"time"

	"github.com/google/uuid"
)

// Book represents a catalog title. AvailableQuantity counts copies on the
// shelf and is only ever mutated through the guarded lending updates, so
// 0 <= available_quantity <= quantity holds at all times.
type Book struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Title             string     `gorm:"column:title;not null"`
	ISBN              *string    `gorm:"column:isbn;uniqueIndex"`
	Description       *string    `gorm:"column:description"`
	Publisher         *string    `gorm:"column:publisher"`
	PublishedYear     *int       `gorm:"column:published_year"`
	CoverURL          *string    `gorm:"column:cover_url"`
	Quantity          int        `gorm:"column:quantity;not null;default:0"`
	AvailableQuantity int        `gorm:"column:available_quantity;not null;default:0"`
	Authors           []Author   `gorm:"many2many:book_authors;constraint:OnDelete:CASCADE"`
	Categories        []Category `gorm:"many2many:book_categories;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
