package fees

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zhanibekov/libris-backend/pkg/db/models"
	"github.com/zhanibekov/libris-backend/pkg/enums"
	pkgerrors "github.com/zhanibekov/libris-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:fees_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Book{}, &models.Loan{}, &models.Fee{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedLoan(t *testing.T, db *gorm.DB) (models.User, models.Loan) {
	t.Helper()
	user := models.User{
		ID: uuid.New(), Email: uuid.NewString() + "@example.com",
		PasswordHash: "x", FirstName: "A", LastName: "B",
		Role: enums.UserRoleStudent,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	book := models.Book{ID: uuid.New(), Title: "Seed", Quantity: 1, AvailableQuantity: 0}
	if err := db.Create(&book).Error; err != nil {
		t.Fatalf("seed book: %v", err)
	}
	loan := models.Loan{
		ID: uuid.New(), BookID: book.ID, UserID: user.ID,
		Status:    enums.LoanStatusIssued,
		IssueDate: time.Now().UTC().Add(-72 * time.Hour),
		DueDate:   time.Now().UTC().Add(-48 * time.Hour),
	}
	if err := db.Create(&loan).Error; err != nil {
		t.Fatalf("seed loan: %v", err)
	}
	return user, loan
}

func errorCode(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	return typed.Code()
}

func TestCreateAndPayFee(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	user, _ := seedLoan(t, db)

	fee, err := svc.CreateFee(ctx, CreateFeeInput{
		UserID: user.ID,
		Type:   enums.FeeTypeDamage,
		Amount: decimal.RequireFromString("12.50"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if fee.Status != enums.FeeStatusUnpaid {
		t.Fatalf("status = %s", fee.Status)
	}

	paid, err := svc.PayFee(ctx, fee.ID)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != enums.FeeStatusPaid {
		t.Fatalf("status = %s", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Fatal("paid_at not recorded")
	}

	// Paying twice conflicts.
	_, err = svc.PayFee(ctx, fee.ID)
	if code := errorCode(t, err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("code = %s, want %s", code, pkgerrors.CodeStateConflict)
	}
}

func TestCreateFeeValidation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	user, _ := seedLoan(t, db)

	_, err := svc.CreateFee(ctx, CreateFeeInput{
		UserID: user.ID,
		Type:   enums.FeeType("parking"),
		Amount: decimal.NewFromInt(1),
	})
	if code := errorCode(t, err); code != pkgerrors.CodeValidation {
		t.Fatalf("invalid type code = %s", code)
	}

	_, err = svc.CreateFee(ctx, CreateFeeInput{
		UserID: user.ID,
		Type:   enums.FeeTypeDamage,
		Amount: decimal.RequireFromString("-1.00"),
	})
	if code := errorCode(t, err); code != pkgerrors.CodeValidation {
		t.Fatalf("negative amount code = %s", code)
	}
}

func TestAssessOverdueFineIsIdempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	user, loan := seedLoan(t, db)
	amount := decimal.RequireFromString("5.00")

	created, err := svc.AssessOverdueFine(ctx, loan.ID, user.ID, amount)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if !created {
		t.Fatal("first sweep did not create a fine")
	}

	created, err = svc.AssessOverdueFine(ctx, loan.ID, user.ID, amount)
	if err != nil {
		t.Fatalf("second assess: %v", err)
	}
	if created {
		t.Fatal("second sweep duplicated the fine")
	}

	var count int64
	if err := db.Model(&models.Fee{}).Where("loan_id = ?", loan.ID).Count(&count).Error; err != nil {
		t.Fatalf("count fees: %v", err)
	}
	if count != 1 {
		t.Fatalf("fee count = %d, want 1", count)
	}
}

func TestListFeesFiltersByUserAndStatus(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	user, _ := seedLoan(t, db)
	other, _ := seedLoan(t, db)

	for _, userID := range []uuid.UUID{user.ID, other.ID} {
		if _, err := svc.CreateFee(ctx, CreateFeeInput{
			UserID: userID,
			Type:   enums.FeeTypeMembership,
			Amount: decimal.NewFromInt(20),
		}); err != nil {
			t.Fatalf("create fee: %v", err)
		}
	}

	unpaid := enums.FeeStatusUnpaid
	views, err := svc.ListFees(ctx, ListFeesInput{Filter: ListFilter{UserID: &user.ID, Status: &unpaid}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 || views[0].UserID != user.ID {
		t.Fatalf("views = %+v", views)
	}
}
