package dunning

import (
	"time"

	"github.com/Maciej19820502/windykacja/internal/db"
)

// OldestOverdue returns the contractor's single oldest unpaid-and-overdue
// invoice (minimum due date), or nil when none is overdue.
//
// This one function defines "the relevant invoice" for stages 2-5. Both the
// eligibility resolver and the dispatcher's invoice re-derivation call it, so
// the scheduled and manual paths cannot drift apart.
func OldestOverdue(invoices []*db.Invoice, today time.Time) *db.Invoice {
	var oldest *db.Invoice
	for _, inv := range invoices {
		if Assess(inv, today).Status != db.InvoiceOverdue {
			continue
		}
		if oldest == nil || inv.DueDate.Before(oldest.DueDate) {
			oldest = inv
		}
	}
	return oldest
}

// EarliestUnpaid returns the unpaid invoice with the earliest due date,
// or nil when everything is paid.
func EarliestUnpaid(invoices []*db.Invoice) *db.Invoice {
	var earliest *db.Invoice
	for _, inv := range invoices {
		if inv.PaidDate != nil {
			continue
		}
		if earliest == nil || inv.DueDate.Before(earliest.DueDate) {
			earliest = inv
		}
	}
	return earliest
}

// SuggestStage maps a contractor's invoices to the stage it currently sits
// in, together with the invoice that drives the decision. No overdue invoice
// means stage 1 (pre-due reminder) with the earliest unpaid invoice, which
// may be nil. With overdue invoices the oldest one decides:
// up to 7 days -> 2, up to 14 -> 3, up to 30 -> 4, beyond -> 5.
func SuggestStage(invoices []*db.Invoice, today time.Time) (db.Stage, *db.Invoice) {
	overdue := OldestOverdue(invoices, today)
	if overdue == nil {
		return db.StagePreDue, EarliestUnpaid(invoices)
	}

	switch days := Assess(overdue, today).DayDiff; {
	case days <= 7:
		return db.StageReminder, overdue
	case days <= 14:
		return db.StageDemand, overdue
	case days <= 30:
		return db.StageFormalNotice, overdue
	default:
		return db.StageFinalNotice, overdue
	}
}
