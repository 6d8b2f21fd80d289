package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repository handles database operations for contractors, invoices,
// templates and the correspondence log.
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const contractorColumns = `id, nip, name, address, vat_status, verified_at, variant, channel, email, phone`

func scanContractor(row pgx.Row) (*Contractor, error) {
	var c Contractor
	err := row.Scan(
		&c.ID,
		&c.NIP,
		&c.Name,
		&c.Address,
		&c.VATStatus,
		&c.VerifiedAt,
		&c.Variant,
		&c.Channel,
		&c.Email,
		&c.Phone,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetContractor retrieves a contractor by ID.
func (r *Repository) GetContractor(ctx context.Context, id int64) (*Contractor, error) {
	query := `SELECT ` + contractorColumns + ` FROM contractors WHERE id = $1`

	c, err := scanContractor(r.db.Pool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("contractor %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query contractor: %w", err)
	}
	return c, nil
}

// GetContractorByNIP retrieves a contractor by its tax id.
func (r *Repository) GetContractorByNIP(ctx context.Context, nip string) (*Contractor, error) {
	query := `SELECT ` + contractorColumns + ` FROM contractors WHERE nip = $1`

	c, err := scanContractor(r.db.Pool().QueryRow(ctx, query, nip))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("contractor nip %s: %w", nip, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query contractor by nip: %w", err)
	}
	return c, nil
}

// ListContractors retrieves all contractors except those with the given
// variants excluded. Pass no variants to list everyone.
func (r *Repository) ListContractors(ctx context.Context, excludeVariant Variant) ([]*Contractor, error) {
	query := `SELECT ` + contractorColumns + ` FROM contractors WHERE variant <> $1 ORDER BY id`

	rows, err := r.db.Pool().Query(ctx, query, excludeVariant)
	if err != nil {
		return nil, fmt.Errorf("query contractors: %w", err)
	}
	defer rows.Close()

	var out []*Contractor
	for rows.Next() {
		c, err := scanContractor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contractor: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateContractor inserts a new contractor and sets its generated id.
func (r *Repository) CreateContractor(ctx context.Context, c *Contractor) error {
	query := `
		INSERT INTO contractors (nip, name, address, vat_status, verified_at, variant, channel, email, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.db.Pool().QueryRow(ctx, query,
		c.NIP, c.Name, c.Address, c.VATStatus, c.VerifiedAt, c.Variant, c.Channel, c.Email, c.Phone,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert contractor: %w", err)
	}

	r.logger.Info("contractor created",
		zap.Int64("contractor_id", c.ID),
		zap.String("nip", c.NIP),
	)
	return nil
}

const invoiceColumns = `id, contractor_name, contractor_id, number, amount, currency, issue_date, due_date, paid_date`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID,
		&inv.ContractorName,
		&inv.ContractorID,
		&inv.Number,
		&inv.Amount,
		&inv.Currency,
		&inv.IssueDate,
		&inv.DueDate,
		&inv.PaidDate,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repository) queryInvoices(ctx context.Context, query string, args ...any) ([]*Invoice, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	var out []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// GetInvoice retrieves a single invoice by ID.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(r.db.Pool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query invoice: %w", err)
	}
	return inv, nil
}

// ListInvoicesByContractor retrieves all invoices linked to a contractor,
// oldest due date first.
func (r *Repository) ListInvoicesByContractor(ctx context.Context, contractorID int64) ([]*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE contractor_id = $1 ORDER BY due_date ASC, id ASC`
	return r.queryInvoices(ctx, query, contractorID)
}

// ListLinkedUnpaidInvoices retrieves every unpaid invoice that has a
// contractor link, oldest due date first. Paid state is stored only as a
// paid_date; status itself is derived on read.
func (r *Repository) ListLinkedUnpaidInvoices(ctx context.Context) ([]*Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE paid_date IS NULL AND contractor_id IS NOT NULL
		ORDER BY due_date ASC, id ASC
	`
	return r.queryInvoices(ctx, query)
}

// GetTemplate retrieves the unique template for (stage, variant, channel).
// Returns ErrNotFound when no row exists.
func (r *Repository) GetTemplate(ctx context.Context, stage Stage, variant Variant, channel Channel) (*Template, error) {
	query := `
		SELECT id, stage, variant, channel, subject, body
		FROM templates
		WHERE stage = $1 AND variant = $2 AND channel = $3
	`

	var t Template
	err := r.db.Pool().QueryRow(ctx, query, stage, variant, channel).Scan(
		&t.ID, &t.Stage, &t.Variant, &t.Channel, &t.Subject, &t.Body,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("template %d/%s/%s: %w", stage, variant, channel, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query template: %w", err)
	}
	return &t, nil
}

// UpsertTemplate inserts or updates the template for its triple. The unique
// constraint on (stage, variant, channel) keeps at most one row per triple.
func (r *Repository) UpsertTemplate(ctx context.Context, t *Template) error {
	if !t.Stage.Valid() || !t.Variant.Valid() || !t.Channel.Valid() {
		return fmt.Errorf("invalid template key %d/%s/%s", t.Stage, t.Variant, t.Channel)
	}
	query := `
		INSERT INTO templates (stage, variant, channel, subject, body)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (stage, variant, channel)
		DO UPDATE SET subject = EXCLUDED.subject, body = EXCLUDED.body
		RETURNING id
	`
	err := r.db.Pool().QueryRow(ctx, query, t.Stage, t.Variant, t.Channel, t.Subject, t.Body).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	return nil
}

// CountTemplates returns the number of template rows.
func (r *Repository) CountTemplates(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM templates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	return n, nil
}

// DeleteAllTemplates removes every template row (used by the reset-to-defaults
// operation before reseeding).
func (r *Repository) DeleteAllTemplates(ctx context.Context) error {
	if _, err := r.db.Pool().Exec(ctx, `DELETE FROM templates`); err != nil {
		return fmt.Errorf("delete templates: %w", err)
	}
	return nil
}

// HasSentCorrespondence reports whether a correspondence record with
// status=sent exists for the given invoice and stage. This is the sole
// signal the duplicate guard consults; failed attempts do not count.
func (r *Repository) HasSentCorrespondence(ctx context.Context, invoiceID int64, stage Stage) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM correspondence
			WHERE invoice_id = $1 AND stage = $2 AND status = $3
		)
	`
	var exists bool
	err := r.db.Pool().QueryRow(ctx, query, invoiceID, stage, CorrespondenceSent).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query sent correspondence: %w", err)
	}
	return exists, nil
}

// CreateCorrespondence appends one dispatch-attempt record. Records are
// immutable once written.
func (r *Repository) CreateCorrespondence(ctx context.Context, rec *Correspondence) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	query := `
		INSERT INTO correspondence (
			id, contractor_id, invoice_id, stage, variant, channel,
			subject, body, sent_at, status, error_detail, recipient
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Pool().Exec(ctx, query,
		rec.ID, rec.ContractorID, rec.InvoiceID, rec.Stage, rec.Variant, rec.Channel,
		rec.Subject, rec.Body, rec.SentAt, rec.Status, rec.ErrorDetail, rec.Recipient,
	)
	if err != nil {
		return fmt.Errorf("insert correspondence: %w", err)
	}

	r.logger.Info("correspondence recorded",
		zap.String("correspondence_id", rec.ID.String()),
		zap.Int64("contractor_id", rec.ContractorID),
		zap.String("stage", rec.Stage.String()),
		zap.String("status", rec.Status),
	)
	return nil
}

// ListCorrespondence retrieves correspondence records, newest first.
func (r *Repository) ListCorrespondence(ctx context.Context, limit, offset int) ([]*Correspondence, error) {
	query := `
		SELECT id, contractor_id, invoice_id, stage, variant, channel,
			subject, body, sent_at, status, error_detail, recipient
		FROM correspondence
		ORDER BY sent_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Pool().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query correspondence: %w", err)
	}
	defer rows.Close()

	var out []*Correspondence
	for rows.Next() {
		var rec Correspondence
		err := rows.Scan(
			&rec.ID, &rec.ContractorID, &rec.InvoiceID, &rec.Stage, &rec.Variant, &rec.Channel,
			&rec.Subject, &rec.Body, &rec.SentAt, &rec.Status, &rec.ErrorDetail, &rec.Recipient,
		)
		if err != nil {
			return nil, fmt.Errorf("scan correspondence: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
