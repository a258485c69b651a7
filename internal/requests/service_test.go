package requests

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

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:requests_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.BookRequest{}); err != nil {
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

func seedUser(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	user := models.User{
		ID: uuid.New(), Email: uuid.NewString() + "@example.com",
		PasswordHash: "x", FirstName: "A", LastName: "B",
		Role: enums.UserRoleStudent,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func errorCode(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	return typed.Code()
}

func TestCreateRequestStartsPending(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	user := seedUser(t, db)

	view, err := svc.CreateRequest(ctx, CreateRequestInput{
		UserID: user.ID,
		Title:  "  The Left Hand of Darkness ",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.Status != enums.RequestStatusPending {
		t.Fatalf("status = %s, want pending", view.Status)
	}
	if view.Title != "The Left Hand of Darkness" {
		t.Fatalf("title not trimmed: %q", view.Title)
	}

	_, err = svc.CreateRequest(ctx, CreateRequestInput{UserID: user.ID, Title: "   "})
	if code := errorCode(t, err); code != pkgerrors.CodeValidation {
		t.Fatalf("blank title code = %s", code)
	}
}

func TestDecisionIsSingleShot(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	user := seedUser(t, db)

	view, err := svc.CreateRequest(ctx, CreateRequestInput{UserID: user.ID, Title: "Dune"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	approved, err := svc.ApproveRequest(ctx, view.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != enums.RequestStatusApproved {
		t.Fatalf("status = %s, want approved", approved.Status)
	}

	// A decided request cannot be flipped again, in either direction.
	if _, err := svc.ApproveRequest(ctx, view.ID); errorCode(t, err) != pkgerrors.CodeStateConflict {
		t.Fatalf("second approve should conflict, got %v", err)
	}
	if _, err := svc.RejectRequest(ctx, view.ID); errorCode(t, err) != pkgerrors.CodeStateConflict {
		t.Fatalf("reject after approve should conflict, got %v", err)
	}
}

func TestRejectRequest(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	user := seedUser(t, db)

	view, err := svc.CreateRequest(ctx, CreateRequestInput{UserID: user.ID, Title: "Hyperion"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rejected, err := svc.RejectRequest(ctx, view.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != enums.RequestStatusRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}
}

func TestDecideUnknownRequest(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.ApproveRequest(context.Background(), uuid.New())
	if code := errorCode(t, err); code != pkgerrors.CodeNotFound {
		t.Fatalf("code = %s, want %s", code, pkgerrors.CodeNotFound)
	}
}

func TestCancelRequestGuardsOwnershipAndState(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	owner := seedUser(t, db)
	other := seedUser(t, db)

	view, err := svc.CreateRequest(ctx, CreateRequestInput{UserID: owner.ID, Title: "Roadside Picnic"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Another member must not see, let alone cancel, the request.
	if err := svc.CancelRequest(ctx, view.ID, other.ID); errorCode(t, err) != pkgerrors.CodeNotFound {
		t.Fatalf("foreign cancel should read as not found, got %v", err)
	}

	if err := svc.CancelRequest(ctx, view.ID, owner.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.GetRequest(ctx, view.ID); errorCode(t, err) != pkgerrors.CodeNotFound {
		t.Fatalf("request should be gone, got %v", err)
	}
}

func TestCancelDecidedRequestConflicts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	user := seedUser(t, db)

	view, err := svc.CreateRequest(ctx, CreateRequestInput{UserID: user.ID, Title: "Annihilation"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.ApproveRequest(ctx, view.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if err := svc.CancelRequest(ctx, view.ID, user.ID); errorCode(t, err) != pkgerrors.CodeStateConflict {
		t.Fatalf("cancel after approve should conflict, got %v", err)
	}

	// Admin deletion ignores the decided state.
	if err := svc.DeleteRequest(ctx, view.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteRequest(ctx, view.ID); errorCode(t, err) != pkgerrors.CodeNotFound {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}

func TestListRequestsFiltersByUserAndStatus(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	alice := seedUser(t, db)
	bob := seedUser(t, db)

	for _, userID := range []uuid.UUID{alice.ID, bob.ID} {
		if _, err := svc.CreateRequest(ctx, CreateRequestInput{UserID: userID, Title: "Solaris"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	pending := enums.RequestStatusPending
	views, err := svc.ListRequests(ctx, ListFilter{UserID: &alice.ID, Status: &pending})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 || views[0].UserID != alice.ID {
		t.Fatalf("views = %+v", views)
	}

	bogus := enums.RequestStatus("shredded")
	if _, err := svc.ListRequests(ctx, ListFilter{Status: &bogus}); errorCode(t, err) != pkgerrors.CodeValidation {
		t.Fatalf("invalid status filter should fail validation, got %v", err)
	}
}
