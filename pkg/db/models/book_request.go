package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/zhanibekov/libris-backend/pkg/enums"
)

// BookRequest is a user suggestion for a title the library does not carry.
type BookRequest struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Title     string              `gorm:"column:title;not null"`
	Author    *string             `gorm:"column:author"`
	Notes     *string             `gorm:"column:notes"`
	Status    enums.RequestStatus `gorm:"column:status;not null;default:pending"`
	User      *User               `gorm:"foreignKey:UserID"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
