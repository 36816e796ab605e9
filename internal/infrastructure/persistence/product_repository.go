package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/salesdw/etl/internal/domain/shared"
	"github.com/salesdw/etl/internal/domain/warehouse"
	"gorm.io/gorm"
)

// GormProductRepository implements warehouse.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindBySKU finds a product dimension row by its canonical SKU
func (r *GormProductRepository) FindBySKU(ctx context.Context, sku string) (*warehouse.Product, error) {
	var product warehouse.Product
	if err := r.db.WithContext(ctx).
		Where("sku = ?", strings.ToUpper(sku)).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// Create inserts a product dimension row
func (r *GormProductRepository) Create(ctx context.Context, product *warehouse.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}
