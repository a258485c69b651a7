package loans

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zhanibekov/libris-backend/pkg/db/models"
	"github.com/zhanibekov/libris-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:loans_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Book{}, &models.Loan{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	user := models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "Reader",
		Role:         enums.UserRoleStudent,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedBook(t *testing.T, db *gorm.DB, quantity, available int) models.Book {
	t.Helper()
	book := models.Book{
		ID:                uuid.New(),
		Title:             "Seed Title",
		Quantity:          quantity,
		AvailableQuantity: available,
	}
	require.NoError(t, db.Create(&book).Error)
	return book
}

func TestDecrementAvailabilityStopsAtZero(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	book := seedBook(t, db, 2, 2)

	for i := 0; i < 2; i++ {
		taken, err := repo.DecrementAvailability(ctx, book.ID)
		require.NoError(t, err)
		require.True(t, taken, "decrement %d refused with copies available", i)
	}

	taken, err := repo.DecrementAvailability(ctx, book.ID)
	require.NoError(t, err)
	assert.False(t, taken, "decrement landed with zero copies available")

	var reloaded models.Book
	require.NoError(t, db.First(&reloaded, "id = ?", book.ID).Error)
	assert.Equal(t, 0, reloaded.AvailableQuantity)
}

func TestIncrementAvailabilityStopsAtQuantity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	book := seedBook(t, db, 3, 2)

	restored, err := repo.IncrementAvailability(ctx, book.ID)
	require.NoError(t, err)
	require.True(t, restored, "increment refused below capacity")

	restored, err = repo.IncrementAvailability(ctx, book.ID)
	require.NoError(t, err)
	assert.False(t, restored, "increment landed above total quantity")

	var reloaded models.Book
	require.NoError(t, db.First(&reloaded, "id = ?", book.ID).Error)
	assert.Equal(t, 3, reloaded.AvailableQuantity)
}

func TestMarkReturnedIsSingleShot(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	user := seedUser(t, db)
	book := seedBook(t, db, 1, 0)

	loan := models.Loan{
		ID:        uuid.New(),
		BookID:    book.ID,
		UserID:    user.ID,
		Status:    enums.LoanStatusIssued,
		IssueDate: time.Now().UTC(),
		DueDate:   time.Now().UTC().Add(14 * 24 * time.Hour),
	}
	require.NoError(t, repo.Create(ctx, &loan))

	returnedAt := time.Now().UTC()
	flipped, err := repo.MarkReturned(ctx, loan.ID, returnedAt)
	require.NoError(t, err)
	require.True(t, flipped, "first return did not land")

	flipped, err = repo.MarkReturned(ctx, loan.ID, returnedAt)
	require.NoError(t, err)
	assert.False(t, flipped, "second return flipped an already-returned loan")

	reloaded, err := repo.FindByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LoanStatusReturned, reloaded.Status)
	assert.NotNil(t, reloaded.ReturnDate)
}

func TestListOverdueExcludesReturnedAndFutureLoans(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	user := seedUser(t, db)
	book := seedBook(t, db, 5, 5)

	now := time.Now().UTC()
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)
	returnedAt := now.Add(-24 * time.Hour)

	overdue := models.Loan{
		ID: uuid.New(), BookID: book.ID, UserID: user.ID,
		Status: enums.LoanStatusIssued, IssueDate: past, DueDate: past,
	}
	onTime := models.Loan{
		ID: uuid.New(), BookID: book.ID, UserID: user.ID,
		Status: enums.LoanStatusIssued, IssueDate: now, DueDate: future,
	}
	closed := models.Loan{
		ID: uuid.New(), BookID: book.ID, UserID: user.ID,
		Status: enums.LoanStatusReturned, IssueDate: past, DueDate: past,
		ReturnDate: &returnedAt,
	}
	for _, loan := range []models.Loan{overdue, onTime, closed} {
		l := loan
		require.NoError(t, repo.Create(ctx, &l))
	}

	loans, err := repo.ListOverdue(ctx, now)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, overdue.ID, loans[0].ID)
}

func TestListOverdueExcludesLoanDueExactlyNow(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	user := seedUser(t, db)
	book := seedBook(t, db, 1, 1)

	now := time.Now().UTC().Truncate(time.Second)
	loan := models.Loan{
		ID: uuid.New(), BookID: book.ID, UserID: user.ID,
		Status: enums.LoanStatusIssued, IssueDate: now.Add(-time.Hour), DueDate: now,
	}
	require.NoError(t, repo.Create(ctx, &loan))

	loans, err := repo.ListOverdue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, loans, "loan due exactly now reported overdue")
}
