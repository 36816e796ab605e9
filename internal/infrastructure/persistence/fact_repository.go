package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/salesdw/etl/internal/domain/etl"
	"github.com/salesdw/etl/internal/domain/warehouse"
	"gorm.io/gorm"
)

// GormFactRepository implements warehouse.FactRepository using GORM
type GormFactRepository struct {
	db *gorm.DB
}

// NewGormFactRepository creates a new GormFactRepository
func NewGormFactRepository(db *gorm.DB) *GormFactRepository {
	return &GormFactRepository{db: db}
}

// Exists reports whether a fact row with the given natural key is already
// present
func (r *GormFactRepository) Exists(ctx context.Context, key warehouse.FactKey) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&warehouse.SalesFact{}).
		Where("time_id = ? AND product_id = ? AND customer_id = ?",
			key.TimeID, key.ProductID, key.CustomerID)
	if key.ChannelID != nil {
		query = query.Where("channel_id = ?", *key.ChannelID)
	} else {
		query = query.Where("channel_id IS NULL")
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveBatch inserts the given facts in one transaction. Each row gets its own
// savepoint so a failed insert is rolled back and skipped without aborting the
// rest of the batch. The returned row errors carry the per-row causes.
func (r *GormFactRepository) SaveBatch(ctx context.Context, facts []*warehouse.SalesFact) (int, []error, error) {
	inserted := 0
	var rowErrs []error

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, fact := range facts {
			sp := fmt.Sprintf("fact_%d", i)
			tx.SavePoint(sp)
			if err := tx.Create(fact).Error; err != nil {
				tx.RollbackTo(sp)
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					// concurrent writer beat us to the natural key
					continue
				}
				rowErrs = append(rowErrs, &etl.CommitError{Err: err})
				continue
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, nil, &etl.CommitError{Err: err}
	}
	return inserted, rowErrs, nil
}

// Count returns the number of fact rows in the warehouse
func (r *GormFactRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&warehouse.SalesFact{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
