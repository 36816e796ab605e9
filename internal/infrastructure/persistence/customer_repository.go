package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/salesdw/etl/internal/domain/shared"
	"github.com/salesdw/etl/internal/domain/warehouse"
	"gorm.io/gorm"
)

// GormCustomerRepository implements warehouse.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByEmail finds a customer dimension row by email
func (r *GormCustomerRepository) FindByEmail(ctx context.Context, email string) (*warehouse.Customer, error) {
	if email == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Email cannot be empty")
	}
	var customer warehouse.Customer
	if err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(email)).
		First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

// Create inserts a customer dimension row
func (r *GormCustomerRepository) Create(ctx context.Context, customer *warehouse.Customer) error {
	if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}
