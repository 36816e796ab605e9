package warehouse

import (
	"strings"
	"time"

	"github.com/salesdw/etl/internal/domain/shared"
)

// Gender is the normalized gender stored on the customer dimension
type Gender string

const (
	GenderMale    Gender = "M"
	GenderFemale  Gender = "F"
	GenderUnknown Gender = "Unknown"
)

// NormalizeGender maps the gender labels used by the source systems onto the
// warehouse values. Unrecognized labels collapse to Unknown rather than
// failing the row.
func NormalizeGender(raw string) Gender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "m", "masculino", "male":
		return GenderMale
	case "f", "femenino", "female":
		return GenderFemale
	default:
		return GenderUnknown
	}
}

// Customer is the customer dimension. Email is the natural key used for
// deduplication across sources.
type Customer struct {
	ID               int64      `gorm:"primaryKey;autoIncrement"`
	Email            string     `gorm:"type:varchar(200);not null;uniqueIndex"`
	Name             string     `gorm:"type:varchar(200);not null"`
	Gender           Gender     `gorm:"type:varchar(10);not null;default:'Unknown'"`
	Country          string     `gorm:"type:varchar(100)"`
	RegistrationDate *time.Time `gorm:"type:date"`
}

// TableName returns the table name for GORM
func (Customer) TableName() string {
	return "dim_customer"
}

// NewCustomer creates a customer dimension row. The email is lower-cased so
// lookups behave the same regardless of source casing.
func NewCustomer(email, name, gender, country string, registered *time.Time) (*Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Email cannot be empty")
	}
	return &Customer{
		Email:            email,
		Name:             name,
		Gender:           NormalizeGender(gender),
		Country:          country,
		RegistrationDate: registered,
	}, nil
}
