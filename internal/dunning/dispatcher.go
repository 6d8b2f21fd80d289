package dunning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Maciej19820502/windykacja/internal/db"
	"github.com/Maciej19820502/windykacja/internal/metrics"
	"github.com/Maciej19820502/windykacja/internal/transport"
)

// Locker serializes the duplicate-guard check-then-log sequence for one
// (invoice, stage) pair across the scheduler and manual triggers.
// Implemented by redis.DispatchLock; a nil Locker degrades to best-effort
// (acceptable for a single process, where batch runs do not overlap).
type Locker interface {
	// TryLock returns a release func when the pair lock was acquired,
	// or ok=false when another dispatch for the pair is in flight.
	TryLock(ctx context.Context, invoiceID int64, stage db.Stage) (release func(), ok bool, err error)
}

// Options adjust a single dispatch call.
type Options struct {
	// Invoice overrides the automatically derived invoice for the message
	// context. When nil the contractor's current invoice is re-derived
	// through the same oldest-overdue rule the resolver uses.
	Invoice *db.Invoice

	// SkipDuplicateCheck bypasses the duplicate guard. Never the default;
	// only the explicit "resend ignoring duplicates" action sets it.
	SkipDuplicateCheck bool
}

// Dispatcher orchestrates one send: resolve template, build context, render,
// deliver, and append exactly one correspondence record per real attempt.
type Dispatcher struct {
	store       Store
	settings    Settings
	sender      transport.Sender
	locker      Locker
	logger      *zap.Logger
	sendTimeout time.Duration
	now         func() time.Time
}

// NewDispatcher creates a dispatcher. locker may be nil.
func NewDispatcher(store Store, settings Settings, sender transport.Sender, locker Locker, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:       store,
		settings:    settings,
		sender:      sender,
		locker:      locker,
		logger:      logger,
		sendTimeout: 30 * time.Second,
		now:         time.Now,
	}
}

// Dispatch sends the message for (contractor, stage) and returns whether it
// was delivered plus a human-readable outcome. Precondition failures
// (unknown contractor, BRAK opt-out, missing template, missing contact)
// abort before any transport call and leave no correspondence record.
// Once rendering and recipient resolution pass, exactly one record is
// written whether delivery succeeds or fails.
func (d *Dispatcher) Dispatch(ctx context.Context, contractorID int64, stage db.Stage, opts Options) (bool, string) {
	if !stage.Valid() {
		return false, fmt.Sprintf("Nieprawidłowy etap: %d.", stage)
	}

	contractor, err := d.store.GetContractor(ctx, contractorID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			metrics.RecordDispatchSkipped(stage.String(), "contractor_not_found")
			return false, "Kontrahent nie znaleziony."
		}
		d.logger.Error("load contractor failed", zap.Int64("contractor_id", contractorID), zap.Error(err))
		return false, fmt.Sprintf("Błąd odczytu kontrahenta: %v", err)
	}

	// The variant is read live here, not snapshotted at resolution time.
	variant := contractor.Variant
	if variant == "" {
		variant = db.VariantStandardowa
	}
	if variant == db.VariantBrak {
		metrics.RecordDispatchSkipped(stage.String(), "brak_opt_out")
		return false, "Kontrahent ma ustawioną ścieżkę windykacji BRAK — nie wysyłamy."
	}

	channel := contractor.Channel
	if channel == "" {
		channel = db.ChannelEmail
	}

	today := d.now()

	invoices, err := d.store.ListInvoicesByContractor(ctx, contractorID)
	if err != nil {
		d.logger.Error("load invoices failed", zap.Int64("contractor_id", contractorID), zap.Error(err))
		return false, fmt.Sprintf("Błąd odczytu faktur: %v", err)
	}

	invoice := opts.Invoice
	if invoice == nil {
		_, invoice = SuggestStage(invoices, today)
	}

	if d.locker != nil && invoice != nil {
		release, ok, err := d.locker.TryLock(ctx, invoice.ID, stage)
		if err != nil {
			// Lock backend down: proceed unguarded rather than blocking
			// all dunning on redis availability.
			d.logger.Warn("dispatch lock unavailable, proceeding without it",
				zap.Int64("invoice_id", invoice.ID),
				zap.Error(err),
			)
		} else if !ok {
			metrics.RecordDispatchSkipped(stage.String(), "concurrent_dispatch")
			return false, "Wysyłka dla tej faktury i etapu jest już w toku."
		} else {
			defer release()
		}
	}

	if !opts.SkipDuplicateCheck && invoice != nil {
		sent, err := d.store.HasSentCorrespondence(ctx, invoice.ID, stage)
		if err != nil {
			d.logger.Error("duplicate guard check failed", zap.Int64("invoice_id", invoice.ID), zap.Error(err))
			return false, fmt.Sprintf("Błąd weryfikacji duplikatów: %v", err)
		}
		if sent {
			metrics.RecordDispatchSkipped(stage.String(), "duplicate")
			return false, fmt.Sprintf("Korespondencja dla faktury %s (etap %d) została już wysłana.", invoice.Number, stage)
		}
	}

	tpl, err := d.store.GetTemplate(ctx, stage, variant, channel)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		d.logger.Error("load template failed", zap.Error(err))
		return false, fmt.Sprintf("Błąd odczytu szablonu: %v", err)
	}
	if tpl == nil || tpl.Body == "" {
		// No usable template is a recoverable skip, not a delivery attempt.
		metrics.RecordDispatchSkipped(stage.String(), "no_template")
		return false, fmt.Sprintf("Brak szablonu dla etapu %d, wariantu %s, kanału %s.", stage, variant, channel)
	}

	profile, err := LoadProfile(ctx, d.settings)
	if err != nil {
		d.logger.Error("load company profile failed", zap.Error(err))
		return false, fmt.Sprintf("Błąd odczytu profilu firmy: %v", err)
	}

	values := BuildContext(contractor, invoices, invoice, stage, profile, today)
	subject, body := Render(tpl, values)

	var recipient string
	switch channel {
	case db.ChannelEmail:
		recipient = contractor.Email
		if recipient == "" {
			metrics.RecordDispatchSkipped(stage.String(), "no_recipient")
			return false, "Kontrahent nie ma podanego adresu e-mail."
		}
	case db.ChannelSMS:
		recipient = contractor.Phone
		if recipient == "" {
			metrics.RecordDispatchSkipped(stage.String(), "no_recipient")
			return false, "Kontrahent nie ma podanego numeru telefonu."
		}
	default:
		return false, fmt.Sprintf("Nieobsługiwany kanał: %s.", channel)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	start := d.now()
	sendErr := d.sender.Send(sendCtx, &transport.Message{
		Channel:   channel,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
	metrics.RecordTransportSend(string(channel), time.Since(start))

	rec := &db.Correspondence{
		ContractorID: contractor.ID,
		Stage:        stage,
		Variant:      variant,
		Channel:      channel,
		Subject:      subject,
		Body:         body,
		SentAt:       d.now().UTC(),
		Status:       db.CorrespondenceSent,
		Recipient:    recipient,
	}
	if invoice != nil {
		rec.InvoiceID = &invoice.ID
	}
	if sendErr != nil {
		detail := sendErr.Error()
		rec.Status = db.CorrespondenceFailed
		rec.ErrorDetail = &detail
	}

	// The only place correspondence records are written: every real attempt
	// shows up exactly once, so the duplicate guard sees them all.
	if err := d.store.CreateCorrespondence(ctx, rec); err != nil {
		d.logger.Error("persist correspondence failed",
			zap.Int64("contractor_id", contractor.ID),
			zap.String("stage", stage.String()),
			zap.Error(err),
		)
	}

	if sendErr != nil {
		metrics.RecordDispatch(stage.String(), string(channel), "failed")
		d.logger.Warn("dispatch failed",
			zap.Int64("contractor_id", contractor.ID),
			zap.String("stage", stage.String()),
			zap.String("channel", string(channel)),
			zap.Error(sendErr),
		)
		return false, fmt.Sprintf("Błąd wysyłki: %v", sendErr)
	}

	metrics.RecordDispatch(stage.String(), string(channel), "sent")
	d.logger.Info("dispatch sent",
		zap.Int64("contractor_id", contractor.ID),
		zap.String("stage", stage.String()),
		zap.String("channel", string(channel)),
		zap.String("recipient", recipient),
	)
	return true, fmt.Sprintf("Wysłano %s do %s (etap %d).", channel, recipient, stage)
}
