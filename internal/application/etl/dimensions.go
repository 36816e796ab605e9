package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/salesdw/etl/internal/domain/etl"
	"github.com/salesdw/etl/internal/domain/shared"
	"github.com/salesdw/etl/internal/domain/warehouse"
	"go.uber.org/zap"
)

// DimensionService is the get-or-create manager for the warehouse dimensions.
// Every lookup behaves as a single idempotent operation: a uniqueness
// violation from a concurrent insert is answered by re-querying for the
// existing row, never by failing.
type DimensionService struct {
	products  warehouse.ProductRepository
	customers warehouse.CustomerRepository
	times     warehouse.TimeRepository
	channels  warehouse.ChannelRepository
	logger    *zap.Logger
}

// NewDimensionService creates a DimensionService
func NewDimensionService(
	products warehouse.ProductRepository,
	customers warehouse.CustomerRepository,
	times warehouse.TimeRepository,
	channels warehouse.ChannelRepository,
	logger *zap.Logger,
) *DimensionService {
	return &DimensionService{
		products:  products,
		customers: customers,
		times:     times,
		channels:  channels,
		logger:    logger,
	}
}

// ProductID returns the surrogate id for a canonical SKU. The resolver
// creates products on first resolution, so a miss here only happens when a
// concurrent run raced us; creating again and re-querying covers it.
func (s *DimensionService) ProductID(ctx context.Context, sku, name, category string) (int64, error) {
	product, err := s.products.FindBySKU(ctx, sku)
	if err == nil {
		return product.ID, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return 0, fmt.Errorf("product lookup failed: %w", err)
	}

	fresh, err := warehouse.NewProduct(sku, name, category)
	if err != nil {
		return 0, err
	}
	if err := s.products.Create(ctx, fresh); err != nil {
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return 0, fmt.Errorf("product insert failed: %w", err)
		}
		existing, lookupErr := s.products.FindBySKU(ctx, sku)
		if lookupErr != nil {
			return 0, fmt.Errorf("product re-lookup after duplicate failed: %w", lookupErr)
		}
		return existing.ID, nil
	}
	s.logger.Info("product dimension created", zap.String("sku", sku))
	return fresh.ID, nil
}

// CustomerID returns the surrogate id for a customer, creating the dimension
// row on first encounter (email is the natural key)
func (s *DimensionService) CustomerID(ctx context.Context, info etl.CustomerInfo) (int64, error) {
	customer, err := s.customers.FindByEmail(ctx, info.Email)
	if err == nil {
		return customer.ID, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return 0, fmt.Errorf("customer lookup failed: %w", err)
	}

	fresh, err := warehouse.NewCustomer(info.Email, info.Name, info.Gender, info.Country, info.RegisteredAt)
	if err != nil {
		return 0, err
	}
	if err := s.customers.Create(ctx, fresh); err != nil {
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return 0, fmt.Errorf("customer insert failed: %w", err)
		}
		existing, lookupErr := s.customers.FindByEmail(ctx, info.Email)
		if lookupErr != nil {
			return 0, fmt.Errorf("customer re-lookup after duplicate failed: %w", lookupErr)
		}
		return existing.ID, nil
	}
	s.logger.Info("customer dimension created", zap.String("email", fresh.Email))
	return fresh.ID, nil
}

// TimeID returns the surrogate id for a calendar date, creating the time row
// with its derived calendar attributes on first encounter. The fx rate is
// left unset here and is never retroactively corrected by the load path.
func (s *DimensionService) TimeID(ctx context.Context, date time.Time) (int64, error) {
	day := warehouse.Midnight(date)
	dim, err := s.times.FindByDate(ctx, day)
	if err == nil {
		return dim.ID, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return 0, fmt.Errorf("time lookup failed: %w", err)
	}

	fresh := warehouse.NewTimeDim(day, nil)
	if err := s.times.Create(ctx, fresh); err != nil {
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return 0, fmt.Errorf("time insert failed: %w", err)
		}
		existing, lookupErr := s.times.FindByDate(ctx, day)
		if lookupErr != nil {
			return 0, fmt.Errorf("time re-lookup after duplicate failed: %w", lookupErr)
		}
		return existing.ID, nil
	}
	return fresh.ID, nil
}

// ChannelID returns the surrogate id for a sales channel, creating the row on
// first encounter. An empty channel name yields no id (facts keyed without
// channel store NULL).
func (s *DimensionService) ChannelID(ctx context.Context, name string) (*int64, error) {
	if name == "" {
		return nil, nil
	}
	channel, err := s.channels.FindByName(ctx, name)
	if err == nil {
		return &channel.ID, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("channel lookup failed: %w", err)
	}

	fresh, err := warehouse.NewChannel(name)
	if err != nil {
		return nil, err
	}
	if err := s.channels.Create(ctx, fresh); err != nil {
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return nil, fmt.Errorf("channel insert failed: %w", err)
		}
		existing, lookupErr := s.channels.FindByName(ctx, name)
		if lookupErr != nil {
			return nil, fmt.Errorf("channel re-lookup after duplicate failed: %w", lookupErr)
		}
		return &existing.ID, nil
	}
	s.logger.Info("channel dimension created", zap.String("name", name))
	return &fresh.ID, nil
}
