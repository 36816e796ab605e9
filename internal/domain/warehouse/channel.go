package warehouse

import (
	"strings"

	"github.com/salesdw/etl/internal/domain/shared"
)

// Channel is the sales channel dimension (e.g. "web", "store")
type Channel struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(100);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (Channel) TableName() string {
	return "dim_channel"
}

// NewChannel creates a channel dimension row
func NewChannel(name string) (*Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_CHANNEL", "Channel name cannot be empty")
	}
	return &Channel{Name: name}, nil
}
