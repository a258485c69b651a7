package books

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zhanibekov/libris-backend/pkg/db/models"
	"github.com/zhanibekov/libris-backend/pkg/enums"
	pkgerrors "github.com/zhanibekov/libris-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:books_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Author{}, &models.Category{}, &models.Book{}, &models.Loan{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func errorCode(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	return typed.Code()
}

func TestCreateBookStartsFullyAvailable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	author := models.Author{ID: uuid.New(), Name: "Ada Palmer"}
	if err := db.Create(&author).Error; err != nil {
		t.Fatalf("seed author: %v", err)
	}

	book, err := svc.CreateBook(context.Background(), CreateBookInput{
		Title:     "Too Like the Lightning",
		Quantity:  4,
		AuthorIDs: []uuid.UUID{author.ID},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if book.Quantity != 4 || book.AvailableQuantity != 4 {
		t.Fatalf("quantities = %d/%d, want 4/4", book.AvailableQuantity, book.Quantity)
	}
	if len(book.Authors) != 1 || book.Authors[0].Name != "Ada Palmer" {
		t.Fatalf("authors = %+v", book.Authors)
	}
}

func TestCreateBookRejectsUnknownAuthor(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.CreateBook(context.Background(), CreateBookInput{
		Title:     "Ghost Author",
		Quantity:  1,
		AuthorIDs: []uuid.UUID{uuid.New()},
	})
	if code := errorCode(t, err); code != pkgerrors.CodeValidation {
		t.Fatalf("code = %s", code)
	}
}

func TestUpdateBookQuantityPreservesIssuedCopies(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	// 5 copies, 2 out on loan.
	book := models.Book{ID: uuid.New(), Title: "Seed", Quantity: 5, AvailableQuantity: 3}
	if err := db.Create(&book).Error; err != nil {
		t.Fatalf("seed book: %v", err)
	}

	newQty := 4
	updated, err := svc.UpdateBook(ctx, UpdateBookInput{ID: book.ID, Quantity: &newQty})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Quantity != 4 || updated.AvailableQuantity != 2 {
		t.Fatalf("quantities = %d/%d, want 2/4", updated.AvailableQuantity, updated.Quantity)
	}

	// Shrinking below the issued count must refuse.
	tooFew := 1
	_, err = svc.UpdateBook(ctx, UpdateBookInput{ID: book.ID, Quantity: &tooFew})
	if code := errorCode(t, err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("code = %s, want %s", code, pkgerrors.CodeStateConflict)
	}
}

func TestDeleteBookRefusesWithIssuedLoans(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	user := models.User{
		ID: uuid.New(), Email: uuid.NewString() + "@example.com",
		PasswordHash: "x", FirstName: "A", LastName: "B",
		Role: enums.UserRoleStudent,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	book := models.Book{ID: uuid.New(), Title: "Held", Quantity: 1, AvailableQuantity: 0}
	if err := db.Create(&book).Error; err != nil {
		t.Fatalf("seed book: %v", err)
	}
	loan := models.Loan{
		ID: uuid.New(), BookID: book.ID, UserID: user.ID,
		Status: enums.LoanStatusIssued,
	}
	if err := db.Create(&loan).Error; err != nil {
		t.Fatalf("seed loan: %v", err)
	}

	err := svc.DeleteBook(ctx, book.ID)
	if code := errorCode(t, err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("code = %s, want %s", code, pkgerrors.CodeStateConflict)
	}

	// After the loan is returned, deletion goes through.
	if err := db.Model(&models.Loan{}).Where("id = ?", loan.ID).
		Update("status", enums.LoanStatusReturned).Error; err != nil {
		t.Fatalf("close loan: %v", err)
	}
	if err := svc.DeleteBook(ctx, book.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetBook(ctx, book.ID); errorCode(t, err) != pkgerrors.CodeNotFound {
		t.Fatal("book still present after delete")
	}
}

func TestListBooksAvailableOnlyFilter(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	inStock := models.Book{ID: uuid.New(), Title: "In Stock", Quantity: 2, AvailableQuantity: 1}
	depleted := models.Book{ID: uuid.New(), Title: "Depleted", Quantity: 2, AvailableQuantity: 0}
	for _, book := range []models.Book{inStock, depleted} {
		b := book
		if err := db.Create(&b).Error; err != nil {
			t.Fatalf("seed book: %v", err)
		}
	}

	page, err := svc.ListBooks(ctx, ListBooksInput{Filter: ListFilter{AvailableOnly: true}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != inStock.ID {
		t.Fatalf("items = %+v", page.Items)
	}
}
