package persistence

import (
	"context"
	"errors"

	"github.com/salesdw/etl/internal/domain/shared"
	"github.com/salesdw/etl/internal/domain/warehouse"
	"gorm.io/gorm"
)

// GormEquivalenceRepository implements warehouse.EquivalenceRepository using
// GORM
type GormEquivalenceRepository struct {
	db *gorm.DB
}

// NewGormEquivalenceRepository creates a new GormEquivalenceRepository
func NewGormEquivalenceRepository(db *gorm.DB) *GormEquivalenceRepository {
	return &GormEquivalenceRepository{db: db}
}

// FindByAnyCode finds an equivalence row matching any of the given source
// identifiers. Empty identifiers do not participate in the match.
func (r *GormEquivalenceRepository) FindByAnyCode(ctx context.Context, native, alt, source string) (*warehouse.Equivalence, error) {
	query := r.db.WithContext(ctx)

	matched := false
	cond := r.db.Session(&gorm.Session{NewDB: true})
	if native != "" {
		cond = cond.Or("native_sku = ?", native)
		matched = true
	}
	if alt != "" {
		cond = cond.Or("alt_code = ?", alt)
		matched = true
	}
	if source != "" {
		cond = cond.Or("source_code = ?", source)
		matched = true
	}
	if !matched {
		return nil, shared.ErrInvalidInput
	}

	var eq warehouse.Equivalence
	if err := query.Where(cond).First(&eq).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &eq, nil
}

// Create inserts an equivalence row
func (r *GormEquivalenceRepository) Create(ctx context.Context, eq *warehouse.Equivalence) error {
	if err := r.db.WithContext(ctx).Create(eq).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}
