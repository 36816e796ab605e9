package persistence

import (
	"context"
	"errors"

	"github.com/salesdw/etl/internal/domain/shared"
	"github.com/salesdw/etl/internal/domain/warehouse"
	"gorm.io/gorm"
)

// GormChannelRepository implements warehouse.ChannelRepository using GORM
type GormChannelRepository struct {
	db *gorm.DB
}

// NewGormChannelRepository creates a new GormChannelRepository
func NewGormChannelRepository(db *gorm.DB) *GormChannelRepository {
	return &GormChannelRepository{db: db}
}

// FindByName finds a channel dimension row by name
func (r *GormChannelRepository) FindByName(ctx context.Context, name string) (*warehouse.Channel, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_CHANNEL", "Channel name cannot be empty")
	}
	var channel warehouse.Channel
	if err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&channel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &channel, nil
}

// Create inserts a channel dimension row
func (r *GormChannelRepository) Create(ctx context.Context, channel *warehouse.Channel) error {
	if err := r.db.WithContext(ctx).Create(channel).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}
