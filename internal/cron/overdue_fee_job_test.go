package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zhanibekov/libris-backend/internal/loans"
	"github.com/zhanibekov/libris-backend/pkg/config"
	"github.com/zhanibekov/libris-backend/pkg/logger"
)

func TestOverdueFeeJob_AssessesEachOverdueLoan(t *testing.T) {
	lister := &fakeLoanLister{views: []loans.LoanView{
		{ID: uuid.New(), UserID: uuid.New()},
		{ID: uuid.New(), UserID: uuid.New()},
	}}
	assessor := &fakeFineAssessor{created: map[uuid.UUID]bool{}}
	job := newOverdueJobForTest(t, lister, assessor, "5.00")

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(assessor.calls) != 2 {
		t.Fatalf("expected 2 assessments, got %d", len(assessor.calls))
	}
	for _, call := range assessor.calls {
		if !call.amount.Equal(decimal.RequireFromString("5.00")) {
			t.Fatalf("amount = %s, want 5.00", call.amount)
		}
	}
}

func TestOverdueFeeJob_ContinuesPastFailures(t *testing.T) {
	broken := uuid.New()
	lister := &fakeLoanLister{views: []loans.LoanView{
		{ID: broken, UserID: uuid.New()},
		{ID: uuid.New(), UserID: uuid.New()},
	}}
	assessor := &fakeFineAssessor{
		created: map[uuid.UUID]bool{},
		failOn:  broken,
	}
	job := newOverdueJobForTest(t, lister, assessor, "5.00")

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	// The healthy loan must still have been assessed.
	if len(assessor.calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(assessor.calls))
	}
}

func TestOverdueFeeJob_RejectsUnparseableAmount(t *testing.T) {
	_, err := NewOverdueFeeJob(OverdueFeeJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Loans:   &fakeLoanLister{},
		Fees:    &fakeFineAssessor{},
		Library: config.LibraryConfig{OverdueFeeAmount: "five bucks"},
	})
	if err == nil {
		t.Fatal("expected constructor error for bad amount")
	}

	_, err = NewOverdueFeeJob(OverdueFeeJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Loans:   &fakeLoanLister{},
		Fees:    &fakeFineAssessor{},
		Library: config.LibraryConfig{OverdueFeeAmount: "-1.00"},
	})
	if err == nil {
		t.Fatal("expected constructor error for negative amount")
	}
}

func newOverdueJobForTest(t *testing.T, lister *fakeLoanLister, assessor *fakeFineAssessor, amount string) Job {
	t.Helper()
	job, err := NewOverdueFeeJob(OverdueFeeJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Loans:   lister,
		Fees:    assessor,
		Library: config.LibraryConfig{OverdueFeeAmount: amount},
	})
	if err != nil {
		t.Fatalf("NewOverdueFeeJob: %v", err)
	}
	return job
}

type fakeLoanLister struct {
	views []loans.LoanView
	err   error
}

func (f *fakeLoanLister) ListOverdue(ctx context.Context, asOf time.Time) ([]loans.LoanView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.views, nil
}

type assessCall struct {
	loanID uuid.UUID
	userID uuid.UUID
	amount decimal.Decimal
}

type fakeFineAssessor struct {
	created map[uuid.UUID]bool
	failOn  uuid.UUID
	calls   []assessCall
}

func (f *fakeFineAssessor) AssessOverdueFine(ctx context.Context, loanID, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	f.calls = append(f.calls, assessCall{loanID: loanID, userID: userID, amount: amount})
	if loanID == f.failOn {
		return false, errors.New("db unavailable")
	}
	if f.created[loanID] {
		return false, nil
	}
	f.created[loanID] = true
	return true, nil
}
