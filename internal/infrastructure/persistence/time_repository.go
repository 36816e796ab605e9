package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/salesdw/etl/internal/domain/shared"
	"github.com/salesdw/etl/internal/domain/warehouse"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormTimeRepository implements warehouse.TimeRepository using GORM
type GormTimeRepository struct {
	db *gorm.DB
}

// NewGormTimeRepository creates a new GormTimeRepository
func NewGormTimeRepository(db *gorm.DB) *GormTimeRepository {
	return &GormTimeRepository{db: db}
}

// FindByDate finds the time dimension row for the given calendar day
func (r *GormTimeRepository) FindByDate(ctx context.Context, date time.Time) (*warehouse.TimeDim, error) {
	var td warehouse.TimeDim
	if err := r.db.WithContext(ctx).
		Where("date = ?", warehouse.Midnight(date)).
		First(&td).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &td, nil
}

// Create inserts a time dimension row
func (r *GormTimeRepository) Create(ctx context.Context, td *warehouse.TimeDim) error {
	if err := r.db.WithContext(ctx).Create(td).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// UpsertRate records the exchange rate for a calendar day, creating the time
// dimension row if it does not exist yet
func (r *GormTimeRepository) UpsertRate(ctx context.Context, date time.Time, rate decimal.Decimal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var td warehouse.TimeDim
		err := tx.Where("date = ?", warehouse.Midnight(date)).First(&td).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fresh := warehouse.NewTimeDim(date, &rate)
			return tx.Create(fresh).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&td).Update("fx_rate", rate).Error
	})
}
