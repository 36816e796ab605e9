package warehouse

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ProductRepository defines persistence for canonical products
type ProductRepository interface {
	// FindBySKU finds a product by its canonical SKU
	FindBySKU(ctx context.Context, sku string) (*Product, error)

	// Create inserts a product; returns shared.ErrAlreadyExists on a
	// uniqueness violation
	Create(ctx context.Context, product *Product) error
}

// EquivalenceRepository defines persistence for source code equivalences
type EquivalenceRepository interface {
	// FindByAnyCode finds an equivalence matching any of the supplied source
	// codes; empty codes are ignored
	FindByAnyCode(ctx context.Context, nativeSKU, altCode, sourceCode string) (*Equivalence, error)

	// Create inserts an equivalence; returns shared.ErrAlreadyExists on a
	// uniqueness violation
	Create(ctx context.Context, eq *Equivalence) error
}

// CustomerRepository defines persistence for the customer dimension
type CustomerRepository interface {
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	Create(ctx context.Context, customer *Customer) error
}

// TimeRepository defines persistence for the time dimension
type TimeRepository interface {
	FindByDate(ctx context.Context, date time.Time) (*TimeDim, error)
	Create(ctx context.Context, dim *TimeDim) error

	// UpsertRate writes the fx rate for a date, creating the time row when
	// absent. Used only by the exchange-rate feed; the load path never
	// corrects rates retroactively.
	UpsertRate(ctx context.Context, date time.Time, rate decimal.Decimal) error
}

// ChannelRepository defines persistence for the channel dimension
type ChannelRepository interface {
	FindByName(ctx context.Context, name string) (*Channel, error)
	Create(ctx context.Context, channel *Channel) error
}

// FactRepository defines persistence for sales facts
type FactRepository interface {
	// Exists reports whether a fact with the given natural key is already
	// stored. This is the dedup safety net that makes overlapping extraction
	// windows safe.
	Exists(ctx context.Context, key FactKey) (bool, error)

	// SaveBatch inserts a batch of facts inside one transaction. Individual
	// row failures are collected and skipped; they do not abort the batch.
	SaveBatch(ctx context.Context, facts []*SalesFact) (inserted int, rowErrs []error, err error)

	// Count returns the total number of stored facts
	Count(ctx context.Context) (int64, error)
}
