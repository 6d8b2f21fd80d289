package dunning

import (
	"context"
	"testing"
	"time"

	"github.com/Maciej19820502/windykacja/internal/db"
)

func testContractor(id int64, variant db.Variant) *db.Contractor {
	return &db.Contractor{
		ID:      id,
		Name:    "Testowa Sp. z o.o.",
		NIP:     "1234567890",
		Variant: variant,
		Channel: db.ChannelEmail,
		Email:   "faktury@testowa.pl",
	}
}

func TestEligibleOverdueWindowPlacement(t *testing.T) {
	// Default offsets: stage 2 at 1 day, 3 at 7, 4 at 14, 5 at 30.
	// A contractor 10 days overdue sits in the stage 3 window only.
	schedules, _ := seededSchedules()
	store := newFakeStore()
	today := date(2025, time.March, 1)

	store.addContractor(testContractor(1, db.VariantStandardowa))
	store.addInvoice(invoice(1, 1, "FV/1/2025", today.AddDate(0, 0, -10)))

	resolver := NewResolver(store, schedules, nop())

	for _, stage := range []db.Stage{db.StageReminder, db.StageDemand, db.StageFormalNotice, db.StageFinalNotice} {
		cands, err := resolver.Eligible(context.Background(), stage, today)
		if err != nil {
			t.Fatalf("stage %d: %v", stage, err)
		}
		want := 0
		if stage == db.StageDemand {
			want = 1
		}
		if len(cands) != want {
			t.Errorf("stage %d: %d candidates, want %d", stage, len(cands), want)
		}
	}
}

func TestEligibleWindowBoundaries(t *testing.T) {
	schedules, _ := seededSchedules()
	today := date(2025, time.March, 1)
	resolver := func(daysLate int) []Candidate {
		store := newFakeStore()
		store.addContractor(testContractor(1, db.VariantStandardowa))
		store.addInvoice(invoice(1, 1, "FV", today.AddDate(0, 0, -daysLate)))
		cands, err := NewResolver(store, schedules, nop()).Eligible(context.Background(), db.StageDemand, today)
		if err != nil {
			t.Fatalf("%d days late: %v", daysLate, err)
		}
		return cands
	}

	// Stage 3 window is [7, 14): 7 in, 13 in, 6 and 14 out.
	if len(resolver(6)) != 0 {
		t.Error("6 days late should be below the stage 3 window")
	}
	if len(resolver(7)) != 1 {
		t.Error("7 days late should open the stage 3 window")
	}
	if len(resolver(13)) != 1 {
		t.Error("13 days late should still be in the stage 3 window")
	}
	if len(resolver(14)) != 0 {
		t.Error("14 days late should already belong to stage 4")
	}
}

func TestEligibleHighestStageUnbounded(t *testing.T) {
	schedules, _ := seededSchedules()
	store := newFakeStore()
	today := date(2025, time.March, 1)

	store.addContractor(testContractor(1, db.VariantStandardowa))
	store.addInvoice(invoice(1, 1, "FV", today.AddDate(0, 0, -500)))

	cands, err := NewResolver(store, schedules, nop()).Eligible(context.Background(), db.StageFinalNotice, today)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Errorf("%d candidates, want 1 (stage 5 has no upper bound)", len(cands))
	}
}

func TestEligibleOldestOverdueDefinesTheWindow(t *testing.T) {
	// A second, newer overdue invoice must not re-trigger a lower stage.
	schedules, _ := seededSchedules()
	store := newFakeStore()
	today := date(2025, time.March, 1)

	store.addContractor(testContractor(1, db.VariantStandardowa))
	store.addInvoice(invoice(1, 1, "FV/OLD", today.AddDate(0, 0, -40)))
	store.addInvoice(invoice(2, 1, "FV/NEW", today.AddDate(0, 0, -5)))

	resolver := NewResolver(store, schedules, nop())

	cands, err := resolver.Eligible(context.Background(), db.StageReminder, today)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 0 {
		t.Errorf("stage 2: %d candidates, want 0", len(cands))
	}

	cands, err = resolver.Eligible(context.Background(), db.StageFinalNotice, today)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatalf("stage 5: %d candidates, want 1", len(cands))
	}
	if cands[0].Invoice.ID != 1 {
		t.Errorf("stage 5 invoice = %d, want the oldest overdue (1)", cands[0].Invoice.ID)
	}
}

func TestEligiblePreDueExactDayOnly(t *testing.T) {
	// Stage 1 offset is -3: an invoice due 2025-02-01 hits on 2025-01-29
	// and on no other day.
	schedules, _ := seededSchedules()
	store := newFakeStore()
	store.addContractor(testContractor(1, db.VariantStandardowa))
	store.addInvoice(invoice(1, 1, "FV/PRE", date(2025, time.February, 1)))

	resolver := NewResolver(store, schedules, nop())

	for _, tc := range []struct {
		today time.Time
		want  int
	}{
		{date(2025, time.January, 28), 0},
		{date(2025, time.January, 29), 1},
		{date(2025, time.January, 30), 0},
		{date(2025, time.February, 1), 0},
	} {
		cands, err := resolver.Eligible(context.Background(), db.StagePreDue, tc.today)
		if err != nil {
			t.Fatal(err)
		}
		if len(cands) != tc.want {
			t.Errorf("today %s: %d candidates, want %d", tc.today.Format("2006-01-02"), len(cands), tc.want)
		}
	}
}

func TestEligibleSkipsBrakContractors(t *testing.T) {
	schedules, _ := seededSchedules()
	store := newFakeStore()
	today := date(2025, time.March, 1)

	store.addContractor(testContractor(1, db.VariantBrak))
	store.addInvoice(invoice(1, 1, "FV/BRAK", today.AddDate(0, 0, -10)))
	store.addInvoice(invoice(2, 1, "FV/PRE", today.AddDate(0, 0, 3)))

	resolver := NewResolver(store, schedules, nop())

	for _, stage := range db.Stages() {
		cands, err := resolver.Eligible(context.Background(), stage, today)
		if err != nil {
			t.Fatal(err)
		}
		if len(cands) != 0 {
			t.Errorf("stage %d: BRAK contractor produced %d candidates", stage, len(cands))
		}
	}
}

func TestEligibleIdempotentAcrossCalls(t *testing.T) {
	schedules, _ := seededSchedules()
	store := newFakeStore()
	today := date(2025, time.March, 1)

	store.addContractor(testContractor(1, db.VariantStandardowa))
	store.addInvoice(invoice(1, 1, "FV", today.AddDate(0, 0, -10)))

	resolver := NewResolver(store, schedules, nop())

	first, err := resolver.Eligible(context.Background(), db.StageDemand, today)
	if err != nil {
		t.Fatal(err)
	}
	second, err := resolver.Eligible(context.Background(), db.StageDemand, today)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Errorf("resolution changed between calls: %d then %d", len(first), len(second))
	}
}
