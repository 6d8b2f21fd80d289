package dunning

import (
	"testing"
	"time"

	"github.com/Maciej19820502/windykacja/internal/db"
)

func TestAssessOverdueInvoice(t *testing.T) {
	inv := invoice(1, 1, "FV/1/2025", date(2025, time.January, 10))
	a := Assess(inv, date(2025, time.January, 15))

	if a.Status != db.InvoiceOverdue {
		t.Errorf("status = %q, want %q", a.Status, db.InvoiceOverdue)
	}
	if a.DayDiff != 5 {
		t.Errorf("day diff = %d, want 5", a.DayDiff)
	}
	if a.Bucket != Bucket1To30 {
		t.Errorf("bucket = %q, want %q", a.Bucket, Bucket1To30)
	}
}

func TestAssessNotYetDue(t *testing.T) {
	inv := invoice(1, 1, "FV/1/2025", date(2025, time.January, 10))

	for _, today := range []time.Time{
		date(2025, time.January, 5),
		date(2025, time.January, 10), // due day itself is still on time
	} {
		a := Assess(inv, today)
		if a.Status != db.InvoiceOnTime {
			t.Errorf("today %s: status = %q, want %q", today.Format("2006-01-02"), a.Status, db.InvoiceOnTime)
		}
		if a.Bucket != BucketOnTime {
			t.Errorf("today %s: bucket = %q, want %q", today.Format("2006-01-02"), a.Bucket, BucketOnTime)
		}
	}
}

func TestAssessPaidStaysPaid(t *testing.T) {
	// Paid late, long ago: the invoice must never show up as overdue again.
	inv := paidInvoice(1, 1, "FV/1/2025", date(2024, time.March, 1), date(2024, time.March, 11))
	a := Assess(inv, date(2025, time.January, 15))

	if a.Status != db.InvoicePaid {
		t.Errorf("status = %q, want %q", a.Status, db.InvoicePaid)
	}
	if a.DayDiff != 10 {
		t.Errorf("day diff = %d, want 10 (payment minus due date)", a.DayDiff)
	}
	if a.Bucket != BucketPaid {
		t.Errorf("bucket = %q, want %q", a.Bucket, BucketPaid)
	}
}

func TestAssessBuckets(t *testing.T) {
	due := date(2025, time.January, 1)
	cases := []struct {
		daysLate int
		bucket   string
	}{
		{0, BucketOnTime},
		{1, Bucket1To30},
		{30, Bucket1To30},
		{31, Bucket31To60},
		{60, Bucket31To60},
		{61, Bucket61To90},
		{90, Bucket61To90},
		{91, Bucket90Plus},
		{400, Bucket90Plus},
	}
	for _, tc := range cases {
		a := Assess(invoice(1, 1, "FV", due), due.AddDate(0, 0, tc.daysLate))
		if a.Bucket != tc.bucket {
			t.Errorf("%d days late: bucket = %q, want %q", tc.daysLate, a.Bucket, tc.bucket)
		}
	}
}

func TestDaysBetweenIgnoresTimeOfDay(t *testing.T) {
	from := time.Date(2025, time.January, 10, 23, 59, 0, 0, time.UTC)
	to := time.Date(2025, time.January, 15, 0, 1, 0, 0, time.UTC)

	if got := DaysBetween(from, to); got != 5 {
		t.Errorf("DaysBetween = %d, want 5", got)
	}
	if got := DaysBetween(to, from); got != -5 {
		t.Errorf("reversed DaysBetween = %d, want -5", got)
	}
}
