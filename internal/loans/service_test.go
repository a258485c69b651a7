package loans

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zhanibekov/libris-backend/pkg/config"
	"github.com/zhanibekov/libris-backend/pkg/db/models"
	"github.com/zhanibekov/libris-backend/pkg/enums"
	pkgerrors "github.com/zhanibekov/libris-backend/pkg/errors"
)

// gormTxRunner mirrors the production transaction wrapper for tests.
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

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db}, config.LibraryConfig{LoanPeriodDays: 14})
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

func TestIssueBookDecrementsAvailabilityAndDefaultsDueDate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	user := seedUser(t, db)
	book := seedBook(t, db, 3, 3)

	before := time.Now().UTC()
	loan, err := svc.IssueBook(ctx, IssueBookInput{BookID: book.ID, UserID: user.ID})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if loan.Status != enums.LoanStatusIssued {
		t.Fatalf("status = %s", loan.Status)
	}
	if loan.Overdue {
		t.Fatal("fresh loan reported overdue")
	}

	wantDue := before.Add(14 * 24 * time.Hour)
	if loan.DueDate.Before(wantDue.Add(-time.Minute)) || loan.DueDate.After(wantDue.Add(time.Minute)) {
		t.Fatalf("due date = %s, want about %s", loan.DueDate, wantDue)
	}

	var reloaded models.Book
	if err := db.First(&reloaded, "id = ?", book.ID).Error; err != nil {
		t.Fatalf("reload book: %v", err)
	}
	if reloaded.AvailableQuantity != 2 {
		t.Fatalf("available = %d, want 2", reloaded.AvailableQuantity)
	}
}

func TestIssueBookRefusesWhenNoCopiesAvailable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	user := seedUser(t, db)
	book := seedBook(t, db, 1, 1)

	if _, err := svc.IssueBook(ctx, IssueBookInput{BookID: book.ID, UserID: user.ID}); err != nil {
		t.Fatalf("first issue: %v", err)
	}

	_, err := svc.IssueBook(ctx, IssueBookInput{BookID: book.ID, UserID: user.ID})
	if code := errorCode(t, err); code != pkgerrors.CodeUnavailable {
		t.Fatalf("code = %s, want %s", code, pkgerrors.CodeUnavailable)
	}

	// The refused issue must not create a loan or move the counter.
	var count int64
	if err := db.Model(&models.Loan{}).Where("book_id = ?", book.ID).Count(&count).Error; err != nil {
		t.Fatalf("count loans: %v", err)
	}
	if count != 1 {
		t.Fatalf("loan count = %d, want 1", count)
	}
	var reloaded models.Book
	if err := db.First(&reloaded, "id = ?", book.ID).Error; err != nil {
		t.Fatalf("reload book: %v", err)
	}
	if reloaded.AvailableQuantity != 0 {
		t.Fatalf("available = %d, want 0", reloaded.AvailableQuantity)
	}
}

func TestIssueBookLastCopyRace(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	// One pooled connection serializes the two transactions at the driver,
	// so both requests are in flight and the conditional decrement alone
	// decides which one gets the copy.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	svc := newTestService(t, db)
	user := seedUser(t, db)
	book := seedBook(t, db, 1, 1)

	start := make(chan struct{})
	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = svc.IssueBook(context.Background(), IssueBookInput{BookID: book.ID, UserID: user.ID})
		}(i)
	}
	close(start)
	wg.Wait()

	var issued, refused int
	for _, err := range results {
		if err == nil {
			issued++
			continue
		}
		if code := errorCode(t, err); code != pkgerrors.CodeUnavailable {
			t.Fatalf("loser code = %s, want %s", code, pkgerrors.CodeUnavailable)
		}
		refused++
	}
	if issued != 1 || refused != 1 {
		t.Fatalf("issued = %d refused = %d, want exactly one of each", issued, refused)
	}

	var count int64
	if err := db.Model(&models.Loan{}).Where("book_id = ?", book.ID).Count(&count).Error; err != nil {
		t.Fatalf("count loans: %v", err)
	}
	if count != 1 {
		t.Fatalf("loan count = %d, want 1", count)
	}
	var reloaded models.Book
	if err := db.First(&reloaded, "id = ?", book.ID).Error; err != nil {
		t.Fatalf("reload book: %v", err)
	}
	if reloaded.AvailableQuantity != 0 {
		t.Fatalf("available = %d, want 0", reloaded.AvailableQuantity)
	}
}

func TestIssueBookUnknownBookAndUser(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	user := seedUser(t, db)
	book := seedBook(t, db, 1, 1)

	_, err := svc.IssueBook(ctx, IssueBookInput{BookID: uuid.New(), UserID: user.ID})
	if code := errorCode(t, err); code != pkgerrors.CodeNotFound {
		t.Fatalf("unknown book code = %s", code)
	}

	_, err = svc.IssueBook(ctx, IssueBookInput{BookID: book.ID, UserID: uuid.New()})
	if code := errorCode(t, err); code != pkgerrors.CodeNotFound {
		t.Fatalf("unknown user code = %s", code)
	}

	// Failed lookups must not move the counter.
	var reloaded models.Book
	if err := db.First(&reloaded, "id = ?", book.ID).Error; err != nil {
		t.Fatalf("reload book: %v", err)
	}
	if reloaded.AvailableQuantity != 1 {
		t.Fatalf("available = %d, want 1", reloaded.AvailableQuantity)
	}
}

func TestIssueBookRejectsPastDueDate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	user := seedUser(t, db)
	book := seedBook(t, db, 1, 1)

	past := time.Now().UTC().Add(-time.Hour)
	_, err := svc.IssueBook(context.Background(), IssueBookInput{
		BookID:  book.ID,
		UserID:  user.ID,
		DueDate: &past,
	})
	if code := errorCode(t, err); code != pkgerrors.CodeValidation {
		t.Fatalf("code = %s, want %s", code, pkgerrors.CodeValidation)
	}
}

func TestReturnLoanRestoresAvailability(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	user := seedUser(t, db)
	book := seedBook(t, db, 2, 2)

	issued, err := svc.IssueBook(ctx, IssueBookInput{BookID: book.ID, UserID: user.ID})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	returned, err := svc.ReturnLoan(ctx, ReturnLoanInput{LoanID: issued.ID})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if returned.Status != enums.LoanStatusReturned {
		t.Fatalf("status = %s", returned.Status)
	}
	if returned.ReturnDate == nil {
		t.Fatal("return date missing")
	}
	if returned.Overdue {
		t.Fatal("returned loan reported overdue")
	}

	var reloaded models.Book
	if err := db.First(&reloaded, "id = ?", book.ID).Error; err != nil {
		t.Fatalf("reload book: %v", err)
	}
	if reloaded.AvailableQuantity != 2 {
		t.Fatalf("available = %d, want 2", reloaded.AvailableQuantity)
	}
}

func TestReturnLoanTwiceConflicts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	user := seedUser(t, db)
	book := seedBook(t, db, 1, 1)

	issued, err := svc.IssueBook(ctx, IssueBookInput{BookID: book.ID, UserID: user.ID})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.ReturnLoan(ctx, ReturnLoanInput{LoanID: issued.ID}); err != nil {
		t.Fatalf("first return: %v", err)
	}

	_, err = svc.ReturnLoan(ctx, ReturnLoanInput{LoanID: issued.ID})
	if code := errorCode(t, err); code != pkgerrors.CodeAlreadyReturned {
		t.Fatalf("code = %s, want %s", code, pkgerrors.CodeAlreadyReturned)
	}

	// The duplicate return must not double-restore the shelf.
	var reloaded models.Book
	if err := db.First(&reloaded, "id = ?", book.ID).Error; err != nil {
		t.Fatalf("reload book: %v", err)
	}
	if reloaded.AvailableQuantity != 1 {
		t.Fatalf("available = %d, want 1", reloaded.AvailableQuantity)
	}
}

func TestReturnLoanUnknownLoan(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.ReturnLoan(context.Background(), ReturnLoanInput{LoanID: uuid.New()})
	if code := errorCode(t, err); code != pkgerrors.CodeNotFound {
		t.Fatalf("code = %s, want %s", code, pkgerrors.CodeNotFound)
	}
}

func TestReturnLoanRollsBackWhenCounterAtCapacity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	user := seedUser(t, db)
	book := seedBook(t, db, 1, 1)

	// An issued loan against a full shelf only happens when the counters
	// drifted; the return must refuse rather than exceed quantity.
	loan := models.Loan{
		ID:        uuid.New(),
		BookID:    book.ID,
		UserID:    user.ID,
		Status:    enums.LoanStatusIssued,
		IssueDate: time.Now().UTC(),
		DueDate:   time.Now().UTC().Add(24 * time.Hour),
	}
	if err := db.Create(&loan).Error; err != nil {
		t.Fatalf("seed loan: %v", err)
	}

	_, err := svc.ReturnLoan(ctx, ReturnLoanInput{LoanID: loan.ID})
	if code := errorCode(t, err); code != pkgerrors.CodeInvariant {
		t.Fatalf("code = %s, want %s", code, pkgerrors.CodeInvariant)
	}

	// Rollback must leave the loan issued so the conflict stays visible.
	var reloaded models.Loan
	if err := db.First(&reloaded, "id = ?", loan.ID).Error; err != nil {
		t.Fatalf("reload loan: %v", err)
	}
	if reloaded.Status != enums.LoanStatusIssued {
		t.Fatalf("status = %s, want issued after rollback", reloaded.Status)
	}
}

func TestGetLoanReportsDerivedOverdue(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	user := seedUser(t, db)
	book := seedBook(t, db, 1, 0)

	past := time.Now().UTC().Add(-72 * time.Hour)
	loan := models.Loan{
		ID:        uuid.New(),
		BookID:    book.ID,
		UserID:    user.ID,
		Status:    enums.LoanStatusIssued,
		IssueDate: past,
		DueDate:   past.Add(24 * time.Hour),
	}
	if err := db.Create(&loan).Error; err != nil {
		t.Fatalf("seed loan: %v", err)
	}

	view, err := svc.GetLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !view.Overdue {
		t.Fatal("expected derived overdue flag")
	}
	if view.Status != enums.LoanStatusIssued {
		t.Fatalf("status = %s, overdue must not be persisted", view.Status)
	}
}

func TestListLoansFiltersAndPages(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	alice := seedUser(t, db)
	bob := seedUser(t, db)
	book := seedBook(t, db, 10, 10)

	for i := 0; i < 3; i++ {
		if _, err := svc.IssueBook(ctx, IssueBookInput{BookID: book.ID, UserID: alice.ID}); err != nil {
			t.Fatalf("issue alice %d: %v", i, err)
		}
	}
	if _, err := svc.IssueBook(ctx, IssueBookInput{BookID: book.ID, UserID: bob.ID}); err != nil {
		t.Fatalf("issue bob: %v", err)
	}

	page, err := svc.ListLoans(ctx, ListLoansInput{Filter: ListFilter{UserID: &alice.ID}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(page.Items))
	}
	for _, item := range page.Items {
		if item.UserID != alice.ID {
			t.Fatalf("loan %s belongs to %s", item.ID, item.UserID)
		}
	}
}
