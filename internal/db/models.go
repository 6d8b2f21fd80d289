package db

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stage is one of the five escalating dunning stages.
type Stage int

const (
	StagePreDue       Stage = 1 // reminder before the due date
	StageReminder     Stage = 2 // amicable payment reminder
	StageDemand       Stage = 3 // payment demand (monit)
	StageFormalNotice Stage = 4 // formal call for payment
	StageFinalNotice  Stage = 5 // final pre-court notice

	StageMin = StagePreDue
	StageMax = StageFinalNotice
)

// Valid reports whether s is one of the five known stages.
func (s Stage) Valid() bool {
	return s >= StageMin && s <= StageMax
}

func (s Stage) String() string {
	return strconv.Itoa(int(s))
}

// Stages lists all stages in ascending order.
func Stages() []Stage {
	return []Stage{StagePreDue, StageReminder, StageDemand, StageFormalNotice, StageFinalNotice}
}

// Variant is a contractor's configured severity path.
type Variant string

const (
	VariantLekka       Variant = "LEKKA"       // light wording
	VariantStandardowa Variant = "STANDARDOWA" // default wording
	VariantOstra       Variant = "OSTRA"       // harsh wording
	VariantBrak        Variant = "BRAK"        // opted out, never contacted
)

// Valid reports whether v is a known severity variant.
func (v Variant) Valid() bool {
	switch v {
	case VariantLekka, VariantStandardowa, VariantOstra, VariantBrak:
		return true
	}
	return false
}

// Variants lists all severity variants.
func Variants() []Variant {
	return []Variant{VariantLekka, VariantStandardowa, VariantOstra, VariantBrak}
}

// Channel is a delivery channel for dunning messages.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// Channels lists all delivery channels.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelSMS}
}

// Contractor is a legal entity identified by its tax id (NIP).
type Contractor struct {
	ID         int64      `json:"id"`
	NIP        string     `json:"nip"`
	Name       string     `json:"name"`
	Address    string     `json:"address"`
	VATStatus  string     `json:"vat_status"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	Variant    Variant    `json:"variant"`
	Channel    Channel    `json:"channel"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
}

// Invoice statuses, derived from due/paid dates on every read path.
const (
	InvoicePaid    = "oplacona"
	InvoiceOnTime  = "w_terminie"
	InvoiceOverdue = "przeterminowana"
)

// Invoice is a monetary obligation. ContractorName is the free-text name
// from the import file and may differ from the linked Contractor record.
type Invoice struct {
	ID             int64           `json:"id"`
	ContractorName string          `json:"contractor_name"`
	ContractorID   *int64          `json:"contractor_id,omitempty"`
	Number         string          `json:"number"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	IssueDate      time.Time       `json:"issue_date"`
	DueDate        time.Time       `json:"due_date"`
	PaidDate       *time.Time      `json:"paid_date,omitempty"`
}

// Template is the message template for one (stage, variant, channel) triple.
// Subject is used by email only. BRAK rows are intentionally empty and must
// never produce a message.
type Template struct {
	ID      int64   `json:"id"`
	Stage   Stage   `json:"stage"`
	Variant Variant `json:"variant"`
	Channel Channel `json:"channel"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
}

// Correspondence outcome statuses.
const (
	CorrespondenceSent   = "wyslana"
	CorrespondenceFailed = "blad"
)

// Correspondence is an append-only record of one dispatch attempt.
type Correspondence struct {
	ID           uuid.UUID `json:"id"`
	ContractorID int64     `json:"contractor_id"`
	InvoiceID    *int64    `json:"invoice_id,omitempty"`
	Stage        Stage     `json:"stage"`
	Variant      Variant   `json:"variant"`
	Channel      Channel   `json:"channel"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	SentAt       time.Time `json:"sent_at"`
	Status       string    `json:"status"`
	ErrorDetail  *string   `json:"error_detail,omitempty"`
	Recipient    string    `json:"recipient"`
}
