package dunning

import (
	"context"

	"github.com/Maciej19820502/windykacja/internal/db"
)

// Store is the persistence surface the engine needs. Implemented by
// db.Repository; tests use in-memory fakes.
type Store interface {
	GetContractor(ctx context.Context, id int64) (*db.Contractor, error)
	ListContractors(ctx context.Context, excludeVariant db.Variant) ([]*db.Contractor, error)
	ListInvoicesByContractor(ctx context.Context, contractorID int64) ([]*db.Invoice, error)
	ListLinkedUnpaidInvoices(ctx context.Context) ([]*db.Invoice, error)
	GetTemplate(ctx context.Context, stage db.Stage, variant db.Variant, channel db.Channel) (*db.Template, error)
	HasSentCorrespondence(ctx context.Context, invoiceID int64, stage db.Stage) (bool, error)
	CreateCorrespondence(ctx context.Context, rec *db.Correspondence) error
}
