package warehouse

import (
	"strings"

	"github.com/salesdw/etl/internal/domain/shared"
)

// Product is a canonical product in the warehouse. Every source-specific
// product code resolves to exactly one canonical SKU. Products are created
// lazily on first encounter and never deleted.
type Product struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	SKU      string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name     string `gorm:"type:varchar(200);not null"`
	Category string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "dim_product"
}

// NewProduct creates a canonical product. Name falls back to the SKU when the
// source carries no product name.
func NewProduct(sku, name, category string) (*Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	if name == "" {
		name = sku
	}
	return &Product{
		SKU:      strings.ToUpper(sku),
		Name:     name,
		Category: category,
	}, nil
}

// Equivalence maps source-specific product codes to a canonical SKU. Many
// source codes may point at the same canonical product, but at most one
// equivalence row exists per distinct code combination.
type Equivalence struct {
	ID           int64   `gorm:"primaryKey;autoIncrement"`
	CanonicalSKU string  `gorm:"type:varchar(50);not null;index"`
	NativeSKU    *string `gorm:"type:varchar(50);uniqueIndex"`
	AltCode      *string `gorm:"type:varchar(50);uniqueIndex"`
	SourceCode   *string `gorm:"type:varchar(50);uniqueIndex"`
}

// TableName returns the table name for GORM
func (Equivalence) TableName() string {
	return "equivalence"
}

// NewEquivalence creates an equivalence row. At least one source code must be
// present; empty codes are stored as NULL so the partial unique indexes only
// bind codes that actually exist.
func NewEquivalence(canonicalSKU, nativeSKU, altCode, sourceCode string) (*Equivalence, error) {
	if canonicalSKU == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "Canonical SKU cannot be empty")
	}
	if nativeSKU == "" && altCode == "" && sourceCode == "" {
		return nil, shared.NewDomainError("INVALID_EQUIVALENCE", "At least one source code is required")
	}
	return &Equivalence{
		CanonicalSKU: strings.ToUpper(canonicalSKU),
		NativeSKU:    nullable(nativeSKU),
		AltCode:      nullable(altCode),
		SourceCode:   nullable(sourceCode),
	}, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
