package etl

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/salesdw/etl/internal/domain/etl"
	"github.com/salesdw/etl/internal/domain/shared"
	"github.com/salesdw/etl/internal/domain/warehouse"
	"go.uber.org/zap"
)

// EquivalenceCache caches source-code to canonical-SKU mappings in front of
// the equivalence repository. A miss is never an error; the cache is purely
// an optimization.
type EquivalenceCache interface {
	Get(ctx context.Context, code string) (string, bool)
	Set(ctx context.Context, code, canonicalSKU string)
}

// EntityResolver maps any source-specific product identifier to one canonical
// SKU. Resolution is idempotent and deterministic: re-resolving the same
// identifier, in any process or run order, yields the same SKU and creates no
// duplicate rows.
type EntityResolver struct {
	products     warehouse.ProductRepository
	equivalences warehouse.EquivalenceRepository
	cache        EquivalenceCache
	logger       *zap.Logger
}

// NewEntityResolver creates an EntityResolver. cache may be nil.
func NewEntityResolver(
	products warehouse.ProductRepository,
	equivalences warehouse.EquivalenceRepository,
	cache EquivalenceCache,
	logger *zap.Logger,
) *EntityResolver {
	return &EntityResolver{
		products:     products,
		equivalences: equivalences,
		cache:        cache,
		logger:       logger,
	}
}

// Resolve returns the canonical SKU for the product reference, creating the
// canonical product and equivalence rows on first encounter
func (r *EntityResolver) Resolve(ctx context.Context, ref etl.ProductRef) (string, error) {
	strongest, ok := ref.Strongest()
	if !ok {
		return "", &etl.RowError{Reason: "product reference carries no identifier"}
	}

	if r.cache != nil {
		if sku, hit := r.cache.Get(ctx, strongest); hit {
			return sku, nil
		}
	}

	eq, err := r.equivalences.FindByAnyCode(ctx, ref.NativeSKU, ref.AltCode, ref.SourceCode)
	switch {
	case err == nil:
		r.checkConflict(eq, ref)
		if r.cache != nil {
			r.cache.Set(ctx, strongest, eq.CanonicalSKU)
		}
		return eq.CanonicalSKU, nil
	case errors.Is(err, shared.ErrNotFound):
		// first encounter, fall through to creation
	default:
		return "", fmt.Errorf("equivalence lookup failed: %w", err)
	}

	canonical := CanonicalSKU(ref)

	if err := r.ensureProduct(ctx, canonical, ref); err != nil {
		return "", err
	}

	newEq, err := warehouse.NewEquivalence(canonical, ref.NativeSKU, ref.AltCode, ref.SourceCode)
	if err != nil {
		return "", err
	}
	if err := r.equivalences.Create(ctx, newEq); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// lost a race with a concurrent run; the stored mapping wins
			existing, lookupErr := r.equivalences.FindByAnyCode(ctx, ref.NativeSKU, ref.AltCode, ref.SourceCode)
			if lookupErr != nil {
				return "", fmt.Errorf("equivalence re-lookup after duplicate failed: %w", lookupErr)
			}
			r.checkConflict(existing, ref)
			canonical = existing.CanonicalSKU
		} else {
			return "", fmt.Errorf("equivalence insert failed: %w", err)
		}
	}

	if r.cache != nil {
		r.cache.Set(ctx, strongest, canonical)
	}
	return canonical, nil
}

// checkConflict logs when an already-resolved identifier is re-seen with a
// conflicting canonical claim. First-writer wins; nothing is corrected.
func (r *EntityResolver) checkConflict(eq *warehouse.Equivalence, ref etl.ProductRef) {
	if ref.NativeSKU == "" {
		return
	}
	claimed := strings.ToUpper(strings.TrimSpace(ref.NativeSKU))
	if claimed != eq.CanonicalSKU {
		conflict := &etl.ConflictError{
			Identifier: ref.NativeSKU,
			Existing:   eq.CanonicalSKU,
			Proposed:   claimed,
		}
		r.logger.Warn("product identity conflict",
			zap.String("existing_sku", eq.CanonicalSKU),
			zap.String("claimed_sku", claimed),
			zap.Error(conflict),
		)
	}
}

func (r *EntityResolver) ensureProduct(ctx context.Context, sku string, ref etl.ProductRef) error {
	if _, err := r.products.FindBySKU(ctx, sku); err == nil {
		return nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("product lookup failed: %w", err)
	}

	product, err := warehouse.NewProduct(sku, ref.Name, ref.Category)
	if err != nil {
		return err
	}
	if err := r.products.Create(ctx, product); err != nil && !errors.Is(err, shared.ErrAlreadyExists) {
		return fmt.Errorf("product insert failed: %w", err)
	}
	return nil
}

// CanonicalSKU derives the canonical SKU for a product reference. A native
// SKU is already canonical; otherwise the SKU is a pure function of the
// strongest identifier's bytes, so repeated resolution in any process yields
// the same value without shared state.
func CanonicalSKU(ref etl.ProductRef) string {
	if ref.NativeSKU != "" {
		return strings.ToUpper(strings.TrimSpace(ref.NativeSKU))
	}
	strongest, _ := ref.Strongest()
	return DeriveSKU(strongest)
}

// DeriveSKU maps a source identifier to a stable generated SKU via FNV-1a
func DeriveSKU(identifier string) string {
	h := fnv.New64a()
	h.Write([]byte(identifier))
	return fmt.Sprintf("SKU-%08X", uint32(h.Sum64()))
}
