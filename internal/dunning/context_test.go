package dunning

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Maciej19820502/windykacja/internal/db"
)

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"999", "999.00"},
		{"1000", "1 000.00"},
		{"1234567.8", "1 234 567.80"},
		{"-1234.5", "-1 234.50"},
	}
	for _, tc := range cases {
		d, err := decimal.NewFromString(tc.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := FormatAmount(d); got != tc.want {
			t.Errorf("FormatAmount(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatCurrencySums(t *testing.T) {
	sums := map[string]decimal.Decimal{
		"PLN": decimal.NewFromInt(5000),
		"EUR": decimal.NewFromInt(1200),
	}
	if got := FormatCurrencySums(sums); got != "1 200.00 EUR, 5 000.00 PLN" {
		t.Errorf("FormatCurrencySums = %q", got)
	}
	if got := FormatCurrencySums(nil); got != "0.00 PLN" {
		t.Errorf("empty sums = %q, want \"0.00 PLN\"", got)
	}
}

func TestSumUnpaidAndOverdue(t *testing.T) {
	today := date(2025, time.March, 1)
	invs := []*db.Invoice{
		invoice(1, 1, "FV/1", today.AddDate(0, 0, -10)),                                     // overdue PLN 1000
		invoice(2, 1, "FV/2", today.AddDate(0, 0, 10)),                                      // on time PLN 1000
		paidInvoice(3, 1, "FV/3", today.AddDate(0, 0, -30), today.AddDate(0, 0, -20)),       // paid
	}
	invs[1].Currency = "" // empty currency counts as PLN

	unpaid := SumUnpaid(invs)
	if !unpaid["PLN"].Equal(decimal.NewFromInt(2000)) {
		t.Errorf("unpaid PLN = %s, want 2000", unpaid["PLN"])
	}

	overdue := SumOverdue(invs, today)
	if !overdue["PLN"].Equal(decimal.NewFromInt(1000)) {
		t.Errorf("overdue PLN = %s, want 1000", overdue["PLN"])
	}
}

func TestObligationsTable(t *testing.T) {
	today := date(2025, time.March, 1)
	overdue := invoice(1, 1, "FV/OVER", today.AddDate(0, 0, -10))
	onTime := invoice(2, 1, "FV/OK", today.AddDate(0, 0, 5))

	table := ObligationsTable([]*db.Invoice{onTime, overdue}, today)
	if !strings.Contains(table, "FV/OVER") || !strings.Contains(table, "FV/OK") {
		t.Fatalf("table missing invoice rows: %q", table)
	}
	if !strings.Contains(table, "Przeterminowana") || !strings.Contains(table, "W terminie") {
		t.Errorf("table missing status labels")
	}
	if !strings.Contains(table, "#fff0f0") {
		t.Errorf("overdue row not highlighted")
	}
	if strings.Index(table, "FV/OVER") > strings.Index(table, "FV/OK") {
		t.Errorf("rows not ordered by due date")
	}

	if got := ObligationsTable(nil, today); got != "" {
		t.Errorf("empty portfolio table = %q, want empty", got)
	}
}

func TestBuildContextWithInvoice(t *testing.T) {
	today := date(2025, time.March, 1)
	contractor := testContractor(1, db.VariantStandardowa)
	inv := invoice(1, 1, "FV/7/2025", today.AddDate(0, 0, -10))
	profile := Profile{Name: "Moja Firma", NIP: "9999999999", Contact: "Jan Kowalski"}

	values := BuildContext(contractor, []*db.Invoice{inv}, inv, db.StageDemand, profile, today)

	if values["kontrahent_nazwa"] != contractor.Name {
		t.Errorf("kontrahent_nazwa = %q", values["kontrahent_nazwa"])
	}
	if values["firma_nazwa"] != "Moja Firma" {
		t.Errorf("firma_nazwa = %q", values["firma_nazwa"])
	}
	if values["nr_faktury"] != "FV/7/2025" {
		t.Errorf("nr_faktury = %q", values["nr_faktury"])
	}
	if values["termin_platnosci"] != inv.DueDate.Format("2006-01-02") {
		t.Errorf("termin_platnosci = %q", values["termin_platnosci"])
	}
	if values["tabela_zobowiazan"] == "" {
		t.Error("stage 3 context should include the obligations table")
	}
}

func TestBuildContextStageOneSkipsTable(t *testing.T) {
	today := date(2025, time.March, 1)
	contractor := testContractor(1, db.VariantStandardowa)
	inv := invoice(1, 1, "FV/1", today.AddDate(0, 0, 3))

	values := BuildContext(contractor, []*db.Invoice{inv}, inv, db.StagePreDue, Profile{}, today)
	if values["tabela_zobowiazan"] != "" {
		t.Error("stage 1 context must not include the obligations table")
	}
}

func TestBuildContextNilInvoice(t *testing.T) {
	today := date(2025, time.March, 1)
	contractor := testContractor(1, db.VariantStandardowa)
	contractor.Name = "" // name falls back to NIP

	values := BuildContext(contractor, nil, nil, db.StageReminder, Profile{}, today)
	if values["kontrahent_nazwa"] != contractor.NIP {
		t.Errorf("kontrahent_nazwa = %q, want NIP fallback", values["kontrahent_nazwa"])
	}
	if values["nr_faktury"] != "—" || values["kwota"] != "0.00" || values["waluta"] != "PLN" {
		t.Errorf("nil invoice placeholders wrong: %q %q %q",
			values["nr_faktury"], values["kwota"], values["waluta"])
	}
	if values["suma_zobowiazan"] != "0.00 PLN" {
		t.Errorf("suma_zobowiazan = %q", values["suma_zobowiazan"])
	}
}
