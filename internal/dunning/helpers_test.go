package dunning

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Maciej19820502/windykacja/internal/db"
	"github.com/Maciej19820502/windykacja/internal/transport"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func invoice(id int64, contractorID int64, number string, due time.Time) *db.Invoice {
	cid := contractorID
	return &db.Invoice{
		ID:           id,
		ContractorID: &cid,
		Number:       number,
		Amount:       decimal.NewFromInt(1000),
		Currency:     "PLN",
		IssueDate:    due.AddDate(0, 0, -14),
		DueDate:      due,
	}
}

func paidInvoice(id int64, contractorID int64, number string, due, paid time.Time) *db.Invoice {
	inv := invoice(id, contractorID, number, due)
	inv.PaidDate = &paid
	return inv
}

// fakeSettings is a map-backed Settings implementation.
type fakeSettings struct {
	values map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: make(map[string]string)}
}

func (s *fakeSettings) Get(_ context.Context, key, def string) (string, error) {
	if v, ok := s.values[key]; ok && v != "" {
		return v, nil
	}
	return def, nil
}

func (s *fakeSettings) Set(_ context.Context, key, value string) error {
	s.values[key] = value
	return nil
}

func (s *fakeSettings) SetDefault(_ context.Context, key, value string) error {
	if _, ok := s.values[key]; !ok {
		s.values[key] = value
	}
	return nil
}

type templateKeyT struct {
	stage   db.Stage
	variant db.Variant
	channel db.Channel
}

// fakeStore is an in-memory Store implementation.
type fakeStore struct {
	contractors map[int64]*db.Contractor
	invoices    map[int64][]*db.Invoice
	templates   map[templateKeyT]*db.Template
	records     []*db.Correspondence
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		contractors: make(map[int64]*db.Contractor),
		invoices:    make(map[int64][]*db.Invoice),
		templates:   make(map[templateKeyT]*db.Template),
	}
}

func (s *fakeStore) addContractor(c *db.Contractor) {
	s.contractors[c.ID] = c
}

func (s *fakeStore) addInvoice(inv *db.Invoice) {
	if inv.ContractorID != nil {
		s.invoices[*inv.ContractorID] = append(s.invoices[*inv.ContractorID], inv)
	}
}

func (s *fakeStore) addTemplate(stage db.Stage, variant db.Variant, channel db.Channel, subject, body string) {
	s.templates[templateKeyT{stage, variant, channel}] = &db.Template{
		Stage: stage, Variant: variant, Channel: channel,
		Subject: subject, Body: body,
	}
}

func (s *fakeStore) GetContractor(_ context.Context, id int64) (*db.Contractor, error) {
	c, ok := s.contractors[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return c, nil
}

func (s *fakeStore) ListContractors(_ context.Context, excludeVariant db.Variant) ([]*db.Contractor, error) {
	var out []*db.Contractor
	for _, c := range s.contractors {
		if c.Variant == excludeVariant {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *fakeStore) ListInvoicesByContractor(_ context.Context, contractorID int64) ([]*db.Invoice, error) {
	return s.invoices[contractorID], nil
}

func (s *fakeStore) ListLinkedUnpaidInvoices(_ context.Context) ([]*db.Invoice, error) {
	var out []*db.Invoice
	for _, list := range s.invoices {
		for _, inv := range list {
			if inv.PaidDate == nil && inv.ContractorID != nil {
				out = append(out, inv)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) GetTemplate(_ context.Context, stage db.Stage, variant db.Variant, channel db.Channel) (*db.Template, error) {
	tpl, ok := s.templates[templateKeyT{stage, variant, channel}]
	if !ok {
		return nil, db.ErrNotFound
	}
	return tpl, nil
}

func (s *fakeStore) HasSentCorrespondence(_ context.Context, invoiceID int64, stage db.Stage) (bool, error) {
	for _, rec := range s.records {
		if rec.InvoiceID != nil && *rec.InvoiceID == invoiceID &&
			rec.Stage == stage && rec.Status == db.CorrespondenceSent {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CreateCorrespondence(_ context.Context, rec *db.Correspondence) error {
	s.records = append(s.records, rec)
	return nil
}

// fakeSender records sent messages and fails on demand.
type fakeSender struct {
	sent    []*transport.Message
	failure error
}

func (s *fakeSender) Send(_ context.Context, msg *transport.Message) error {
	if s.failure != nil {
		return s.failure
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) SupportsChannel(channel db.Channel) bool {
	return channel.Valid()
}

// seededSchedules returns a schedule store with the default schedules applied.
func seededSchedules() (*ScheduleStore, *fakeSettings) {
	settings := newFakeSettings()
	store := NewScheduleStore(settings)
	if err := store.Seed(context.Background()); err != nil {
		panic(fmt.Sprintf("seed schedules: %v", err))
	}
	return store, settings
}

func nop() *zap.Logger {
	return zap.NewNop()
}
