package dunning

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Maciej19820502/windykacja/internal/db"
)

// Profile holds the sender-company fields substituted into every message.
type Profile struct {
	Name    string
	Address string
	NIP     string
	Contact string
}

// LoadProfile reads the company profile from the settings store.
func LoadProfile(ctx context.Context, settings Settings) (Profile, error) {
	var p Profile
	var err error
	if p.Name, err = settings.Get(ctx, db.SettingCompanyName, ""); err != nil {
		return p, err
	}
	if p.Address, err = settings.Get(ctx, db.SettingCompanyAddress, ""); err != nil {
		return p, err
	}
	if p.NIP, err = settings.Get(ctx, db.SettingCompanyNIP, ""); err != nil {
		return p, err
	}
	if p.Contact, err = settings.Get(ctx, db.SettingCompanyContact, ""); err != nil {
		return p, err
	}
	return p, nil
}

// SumUnpaid groups the amounts of all unpaid invoices by currency.
func SumUnpaid(invoices []*db.Invoice) map[string]decimal.Decimal {
	sums := make(map[string]decimal.Decimal)
	for _, inv := range invoices {
		if inv.PaidDate != nil {
			continue
		}
		cur := currencyOrPLN(inv.Currency)
		sums[cur] = sums[cur].Add(inv.Amount)
	}
	return sums
}

// SumOverdue groups the amounts of overdue invoices by currency.
func SumOverdue(invoices []*db.Invoice, today time.Time) map[string]decimal.Decimal {
	sums := make(map[string]decimal.Decimal)
	for _, inv := range invoices {
		if Assess(inv, today).Status != db.InvoiceOverdue {
			continue
		}
		cur := currencyOrPLN(inv.Currency)
		sums[cur] = sums[cur].Add(inv.Amount)
	}
	return sums
}

func currencyOrPLN(cur string) string {
	if cur == "" {
		return "PLN"
	}
	return cur
}

// FormatAmount renders an amount with two decimals and space-grouped
// thousands: 1234567.8 -> "1 234 567.80".
func FormatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

// FormatCurrencySums renders per-currency totals sorted by currency code:
// "1 200.00 EUR, 5 000.00 PLN". Amounts are never converted to a single
// currency; an empty map renders as "0.00 PLN".
func FormatCurrencySums(sums map[string]decimal.Decimal) string {
	if len(sums) == 0 {
		return "0.00 PLN"
	}
	codes := make([]string, 0, len(sums))
	for cur := range sums {
		codes = append(codes, cur)
	}
	sort.Strings(codes)

	parts := make([]string, 0, len(codes))
	for _, cur := range codes {
		parts = append(parts, FormatAmount(sums[cur])+" "+cur)
	}
	return strings.Join(parts, ", ")
}

// ObligationsTable renders the HTML table of a contractor's unpaid invoices
// with overdue rows highlighted, followed by total and overdue sums.
// Returns "" when there is nothing to list.
func ObligationsTable(invoices []*db.Invoice, today time.Time) string {
	var unpaid []*db.Invoice
	for _, inv := range invoices {
		if inv.PaidDate == nil {
			unpaid = append(unpaid, inv)
		}
	}
	if len(unpaid) == 0 {
		return ""
	}
	sort.Slice(unpaid, func(i, j int) bool {
		return unpaid[i].DueDate.Before(unpaid[j].DueDate)
	})

	var b strings.Builder
	b.WriteString(`<table border="1" cellpadding="6" cellspacing="0" style="border-collapse:collapse; font-size:13px;">`)
	b.WriteString(`<tr style="background:#f0f0f0;"><th>Nr faktury</th><th>Kwota</th><th>Waluta</th><th>Termin</th><th>Dni po terminie</th><th>Status</th></tr>`)
	for _, inv := range unpaid {
		a := Assess(inv, today)
		color := "#ffffff"
		statusTxt := "W terminie"
		if a.Status == db.InvoiceOverdue {
			color = "#fff0f0"
			statusTxt = "Przeterminowana"
		}
		fmt.Fprintf(&b,
			`<tr style="background:%s;"><td>%s</td><td style="text-align:right;">%s</td><td>%s</td><td>%s</td><td style="text-align:center;">%d</td><td>%s</td></tr>`,
			color, inv.Number, FormatAmount(inv.Amount), currencyOrPLN(inv.Currency),
			inv.DueDate.Format("2006-01-02"), a.DayDiff, statusTxt,
		)
	}
	b.WriteString(`</table>`)

	fmt.Fprintf(&b, `<p><strong>Suma zobowiązań:</strong> %s<br>`, FormatCurrencySums(SumUnpaid(unpaid)))
	fmt.Fprintf(&b, `<strong>W tym przeterminowane:</strong> %s</p>`, FormatCurrencySums(SumOverdue(unpaid, today)))
	return b.String()
}

// BuildContext assembles the placeholder values for one message. The
// obligations table is included from stage 2 upward; stage-1 messages are
// single-invoice reminders. A nil invoice substitutes dashes and zeros.
func BuildContext(contractor *db.Contractor, invoices []*db.Invoice, invoice *db.Invoice, stage db.Stage, profile Profile, today time.Time) map[string]string {
	name := contractor.Name
	if name == "" {
		name = contractor.NIP
	}

	table := ""
	if stage >= db.StageReminder {
		table = ObligationsTable(invoices, today)
	}

	values := map[string]string{
		"kontrahent_nazwa":      name,
		"kontrahent_nip":        contractor.NIP,
		"firma_nazwa":           profile.Name,
		"firma_adres":           profile.Address,
		"firma_nip":             profile.NIP,
		"firma_osoba":           profile.Contact,
		"tabela_zobowiazan":     table,
		"suma_zobowiazan":       FormatCurrencySums(SumUnpaid(invoices)),
		"suma_przeterminowanych": FormatCurrencySums(SumOverdue(invoices, today)),
	}

	if invoice != nil {
		values["nr_faktury"] = invoice.Number
		values["kwota"] = FormatAmount(invoice.Amount)
		values["waluta"] = currencyOrPLN(invoice.Currency)
		values["data_wystawienia"] = invoice.IssueDate.Format("2006-01-02")
		values["termin_platnosci"] = invoice.DueDate.Format("2006-01-02")
	} else {
		values["nr_faktury"] = "—"
		values["kwota"] = "0.00"
		values["waluta"] = "PLN"
		values["data_wystawienia"] = "—"
		values["termin_platnosci"] = "—"
	}
	return values
}
