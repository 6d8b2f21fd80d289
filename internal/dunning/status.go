// Package dunning implements the stage-determination and dispatch engine:
// invoice status derivation, per-stage eligibility resolution, template
// rendering, message context building and the dispatcher that ties them to
// the delivery transports and the correspondence log.
package dunning

import (
	"time"

	"github.com/Maciej19820502/windykacja/internal/db"
)

// Aging buckets for unpaid invoices, plus the paid bucket.
const (
	BucketPaid   = "oplacona"
	BucketOnTime = "w_terminie"
	Bucket1To30  = "1-30"
	Bucket31To60 = "31-60"
	Bucket61To90 = "61-90"
	Bucket90Plus = "90+"
)

// Assessment is the derived view of an invoice at a point in time. Status
// and day difference are never stored; every read path recomputes them.
type Assessment struct {
	Status  string
	DayDiff int
	Bucket  string
}

// Assess derives the invoice status for "today". A paid invoice keeps the
// difference between payment and due date; an unpaid one counts days past
// due (negative before the due date).
func Assess(inv *db.Invoice, today time.Time) Assessment {
	if inv.PaidDate != nil {
		return Assessment{
			Status:  db.InvoicePaid,
			DayDiff: DaysBetween(inv.DueDate, *inv.PaidDate),
			Bucket:  BucketPaid,
		}
	}

	diff := DaysBetween(inv.DueDate, today)
	a := Assessment{DayDiff: diff}
	if diff > 0 {
		a.Status = db.InvoiceOverdue
	} else {
		a.Status = db.InvoiceOnTime
	}
	a.Bucket = bucket(diff)
	return a
}

func bucket(dayDiff int) string {
	switch {
	case dayDiff <= 0:
		return BucketOnTime
	case dayDiff <= 30:
		return Bucket1To30
	case dayDiff <= 60:
		return Bucket31To60
	case dayDiff <= 90:
		return Bucket61To90
	default:
		return Bucket90Plus
	}
}

// DaysBetween returns the number of calendar days from one date to another,
// ignoring the time-of-day and timezone components.
func DaysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
