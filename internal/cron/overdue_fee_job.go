package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/zhanibekov/libris-backend/internal/loans"
	"github.com/zhanibekov/libris-backend/pkg/config"
	"github.com/zhanibekov/libris-backend/pkg/logger"
)

type overdueLoanLister interface {
	ListOverdue(ctx context.Context, asOf time.Time) ([]loans.LoanView, error)
}

type overdueFineAssessor interface {
	AssessOverdueFine(ctx context.Context, loanID, userID uuid.UUID, amount decimal.Decimal) (bool, error)
}

// OverdueFeeJobParams configures the scheduled overdue fine sweep.
type OverdueFeeJobParams struct {
	Logger  *logger.Logger
	Loans   overdueLoanLister
	Fees    overdueFineAssessor
	Library config.LibraryConfig
}

type overdueFeeJob struct {
	logg   *logger.Logger
	loans  overdueLoanLister
	fees   overdueFineAssessor
	amount decimal.Decimal
	now    func() time.Time
}

// NewOverdueFeeJob constructs the job that fines members holding overdue loans.
// Each overdue loan receives at most one fine regardless of how many sweeps
// observe it.
func NewOverdueFeeJob(params OverdueFeeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Loans == nil {
		return nil, fmt.Errorf("loans service required")
	}
	if params.Fees == nil {
		return nil, fmt.Errorf("fees service required")
	}
	amount, err := decimal.NewFromString(params.Library.OverdueFeeAmount)
	if err != nil {
		return nil, fmt.Errorf("parse overdue fee amount %q: %w", params.Library.OverdueFeeAmount, err)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("overdue fee amount must not be negative")
	}
	return &overdueFeeJob{
		logg:   params.Logger,
		loans:  params.Loans,
		fees:   params.Fees,
		amount: amount,
		now:    time.Now,
	}, nil
}

func (j *overdueFeeJob) Name() string { return "overdue-fee-sweep" }

func (j *overdueFeeJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	overdue, err := j.loans.ListOverdue(ctx, asOf)
	if err != nil {
		return fmt.Errorf("list overdue loans: %w", err)
	}

	var errs []error
	assessed := 0
	for _, loan := range overdue {
		created, err := j.fees.AssessOverdueFine(ctx, loan.ID, loan.UserID, j.amount)
		if err != nil {
			errs = append(errs, fmt.Errorf("assess fine for loan %s: %w", loan.ID, err))
			continue
		}
		if created {
			assessed++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"overdue":  len(overdue),
		"assessed": assessed,
	})
	j.logg.Info(logCtx, "overdue fine sweep complete")
	return multierr.Combine(errs...)
}
