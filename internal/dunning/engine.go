package dunning

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Maciej19820502/windykacja/internal/db"
	"github.com/Maciej19820502/windykacja/internal/metrics"
)

// RunOptions adjust a stage batch run.
type RunOptions struct {
	// SkipDuplicateCheck resends even to pairs already successfully sent.
	// Explicit opt-in for the manual "resend ignoring duplicates" action.
	SkipDuplicateCheck bool

	// Trigger labels the run origin for metrics ("scheduler" or "manual").
	Trigger string
}

// Engine combines the eligibility resolver and the dispatcher into the two
// entry points the surrounding layer calls: RunStage and ResolveStage.
type Engine struct {
	store      Store
	resolver   *Resolver
	dispatcher *Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewEngine creates the dunning engine.
func NewEngine(store Store, resolver *Resolver, dispatcher *Dispatcher, logger *zap.Logger) *Engine {
	return &Engine{
		store:      store,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// RunStage resolves the eligible set for a stage and dispatches to each
// candidate, returning aggregate sent and error counts. One contractor's
// failure never aborts the batch; only a failure to resolve the set does.
func (e *Engine) RunStage(ctx context.Context, stage db.Stage, opts RunOptions) (sent, errors int, err error) {
	trigger := opts.Trigger
	if trigger == "" {
		trigger = "manual"
	}
	start := e.now()
	defer func() {
		metrics.RecordStageRun(stage.String(), trigger, time.Since(start))
	}()

	today := e.now()
	candidates, err := e.resolver.Eligible(ctx, stage, today)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve stage %d: %w", stage, err)
	}

	for _, cand := range candidates {
		if !opts.SkipDuplicateCheck && cand.Invoice != nil {
			already, err := e.store.HasSentCorrespondence(ctx, cand.Invoice.ID, stage)
			if err != nil {
				e.logger.Error("duplicate guard check failed",
					zap.Int64("invoice_id", cand.Invoice.ID),
					zap.Error(err),
				)
				errors++
				continue
			}
			if already {
				continue
			}
		}

		// Stage 1 pins the matched invoice; stages 2-5 let the dispatcher
		// re-derive the oldest overdue invoice so the manual and scheduled
		// paths share one definition of "the relevant invoice".
		dispatchOpts := Options{SkipDuplicateCheck: opts.SkipDuplicateCheck}
		if stage == db.StagePreDue {
			dispatchOpts.Invoice = cand.Invoice
		}

		ok, msg := e.dispatcher.Dispatch(ctx, cand.Contractor.ID, stage, dispatchOpts)
		if ok {
			sent++
		} else {
			errors++
			e.logger.Warn("batch dispatch not sent",
				zap.Int64("contractor_id", cand.Contractor.ID),
				zap.String("stage", stage.String()),
				zap.String("reason", msg),
			)
		}
	}

	e.logger.Info("stage run finished",
		zap.String("stage", stage.String()),
		zap.String("trigger", trigger),
		zap.Int("candidates", len(candidates)),
		zap.Int("sent", sent),
		zap.Int("errors", errors),
	)
	return sent, errors, nil
}

// Dispatch sends a single message, exposed for the manual send path.
func (e *Engine) Dispatch(ctx context.Context, contractorID int64, stage db.Stage, opts Options) (bool, string) {
	return e.dispatcher.Dispatch(ctx, contractorID, stage, opts)
}

// ResolveStage returns the stage a contractor currently sits in together
// with the invoice driving the decision (nil when nothing is unpaid).
func (e *Engine) ResolveStage(ctx context.Context, contractorID int64) (db.Stage, *db.Invoice, error) {
	if _, err := e.store.GetContractor(ctx, contractorID); err != nil {
		return 0, nil, err
	}
	invoices, err := e.store.ListInvoicesByContractor(ctx, contractorID)
	if err != nil {
		return 0, nil, fmt.Errorf("list invoices: %w", err)
	}
	stage, invoice := SuggestStage(invoices, e.now())
	return stage, invoice, nil
}
