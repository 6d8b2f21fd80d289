package dunning

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Maciej19820502/windykacja/internal/db"
)

// Candidate is one (contractor, invoice) pair eligible for a stage.
type Candidate struct {
	Contractor *db.Contractor
	Invoice    *db.Invoice
}

// Resolver computes the set of (contractor, invoice) pairs eligible for a
// stage at a point in time, honoring the BRAK opt-out and the per-stage
// activation windows.
type Resolver struct {
	store     Store
	schedules *ScheduleStore
	logger    *zap.Logger
}

// NewResolver creates an eligibility resolver.
func NewResolver(store Store, schedules *ScheduleStore, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:     store,
		schedules: schedules,
		logger:    logger,
	}
}

// Eligible resolves the eligible set for a stage on the given day.
//
// Stage 1 is invoice-centric: every unpaid linked invoice whose due date is
// exactly |offset| days ahead of today. It is a single-day hit, not a window:
// each invoice gets the pre-due nudge once.
//
// Stages 2-5 are contractor-centric: the contractor's single oldest overdue
// invoice places it into exactly one contiguous half-open window
// [offset(s), offset(next s)). Newer overdue invoices do not independently
// trigger lower stages.
func (r *Resolver) Eligible(ctx context.Context, stage db.Stage, today time.Time) ([]Candidate, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("invalid stage %d", stage)
	}

	sched, err := r.schedules.Get(ctx, stage)
	if err != nil {
		return nil, fmt.Errorf("load schedule for stage %d: %w", stage, err)
	}

	if stage == db.StagePreDue {
		return r.preDueCandidates(ctx, sched.OffsetDays, today)
	}
	return r.overdueCandidates(ctx, stage, sched.OffsetDays, today)
}

func (r *Resolver) preDueCandidates(ctx context.Context, offsetDays int, today time.Time) ([]Candidate, error) {
	target := offsetDays
	if target < 0 {
		target = -target
	}

	invoices, err := r.store.ListLinkedUnpaidInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unpaid invoices: %w", err)
	}

	var out []Candidate
	for _, inv := range invoices {
		if DaysBetween(today, inv.DueDate) != target {
			continue
		}
		if inv.ContractorID == nil {
			continue
		}
		contractor, err := r.store.GetContractor(ctx, *inv.ContractorID)
		if err != nil {
			r.logger.Warn("skipping invoice with unresolvable contractor",
				zap.Int64("invoice_id", inv.ID),
				zap.Error(err),
			)
			continue
		}
		if contractor.Variant == db.VariantBrak {
			continue
		}
		out = append(out, Candidate{Contractor: contractor, Invoice: inv})
	}
	return out, nil
}

func (r *Resolver) overdueCandidates(ctx context.Context, stage db.Stage, offsetDays int, today time.Time) ([]Candidate, error) {
	// Upper bound comes from the next configured stage; the highest stage
	// window is unbounded.
	upper := -1
	if next := NextConfiguredStage(stage); next != 0 {
		nextSched, err := r.schedules.Get(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("load schedule for stage %d: %w", next, err)
		}
		upper = nextSched.OffsetDays
	}

	contractors, err := r.store.ListContractors(ctx, db.VariantBrak)
	if err != nil {
		return nil, fmt.Errorf("list contractors: %w", err)
	}

	var out []Candidate
	for _, c := range contractors {
		invoices, err := r.store.ListInvoicesByContractor(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("list invoices for contractor %d: %w", c.ID, err)
		}
		overdue := OldestOverdue(invoices, today)
		if overdue == nil {
			continue
		}
		days := Assess(overdue, today).DayDiff
		if days < offsetDays {
			continue
		}
		if upper >= 0 && days >= upper {
			continue
		}
		out = append(out, Candidate{Contractor: c, Invoice: overdue})
	}
	return out, nil
}
