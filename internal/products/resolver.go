package products

import (
	"context"

	pkgerrors "github.com/castanedo/poscore-backend/pkg/errors"
	"github.com/google/uuid"
)

// Resolver maps barcodes to product ids. Input may contain duplicates; the
// lookup is deduplicated and issued as one batch query. Barcodes absent from
// the returned map are unresolved — callers decide whether that is an error.
type Resolver struct {
	repo *Repository
}

// NewResolver builds a resolver over the product repository.
func NewResolver(repo *Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns a barcode→product-id map containing only barcodes that
// matched a product. No side effects.
func (r *Resolver) Resolve(ctx context.Context, barcodes []string) (map[string]uuid.UUID, error) {
	resolved := make(map[string]uuid.UUID, len(barcodes))
	if len(barcodes) == 0 {
		return resolved, nil
	}

	seen := make(map[string]bool, len(barcodes))
	distinct := make([]string, 0, len(barcodes))
	for _, barcode := range barcodes {
		if barcode == "" || seen[barcode] {
			continue
		}
		seen[barcode] = true
		distinct = append(distinct, barcode)
	}

	rows, err := r.repo.FindByBarcodes(ctx, distinct)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving barcodes")
	}
	for _, row := range rows {
		resolved[row.Barcode] = row.ID
	}
	return resolved, nil
}
