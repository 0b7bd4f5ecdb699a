package destination

import (
	"context"

	"hempies/coasync/internal/domain"
)

// Record is the destination-side view of one product, keyed by SKU.
type Record struct {
	ID       string
	SKU      string
	Name     string
	Status   domain.Status
	Quantity int
}

// Adapter is the capability set the reconciliation engine needs from a
// destination. FindBySKU returns (nil, nil) when no record exists.
//
// MarkExcluded reports whether the exclusion was persisted: the
// spreadsheet destination is a reporting view and records excluded items
// with an explicit status, while the CMS destination hides them and
// leaves any existing record untouched.
type Adapter interface {
	Name() string
	FindBySKU(ctx context.Context, sku string) (*Record, error)
	Create(ctx context.Context, item domain.CatalogItem) (*Record, error)
	Update(ctx context.Context, id string, item domain.CatalogItem, status domain.Status, showCOA bool) error
	SetStatus(ctx context.Context, id string, status domain.Status, showCOA bool) error
	MarkExcluded(ctx context.Context, item domain.CatalogItem) (bool, error)
}
