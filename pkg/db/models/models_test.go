package models_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zhanibekov/libris-backend/pkg/db/models"
	"github.com/zhanibekov/libris-backend/pkg/enums"
)

// The repo tests build their schema from these models on the sqlite driver,
// so every column tag has to stay portable: nothing Postgres-only, and IDs
// assigned by the application rather than a database default.
func TestSchemaMigratesOnSQLite(t *testing.T) {
	t.Parallel()

	dsn := "file:models_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Author{},
		&models.Category{},
		&models.Book{},
		&models.Loan{},
		&models.Fee{},
		&models.BookRequest{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	user := models.User{
		ID:           uuid.New(),
		Email:        "reader@example.com",
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "Reader",
		Role:         enums.UserRoleStudent,
		IsActive:     true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	book := models.Book{ID: uuid.New(), Title: "Migration Check", Quantity: 1, AvailableQuantity: 1}
	if err := db.Create(&book).Error; err != nil {
		t.Fatalf("create book: %v", err)
	}

	loan := models.Loan{
		ID:        uuid.New(),
		BookID:    book.ID,
		UserID:    user.ID,
		Status:    enums.LoanStatusIssued,
		IssueDate: time.Now().UTC(),
		DueDate:   time.Now().UTC().Add(24 * time.Hour),
	}
	if err := db.Create(&loan).Error; err != nil {
		t.Fatalf("create loan: %v", err)
	}

	var reloaded models.Loan
	if err := db.First(&reloaded, "id = ?", loan.ID).Error; err != nil {
		t.Fatalf("reload loan: %v", err)
	}
	if reloaded.ID != loan.ID || reloaded.BookID != book.ID {
		t.Fatalf("round-trip mismatch: %+v", reloaded)
	}
}
