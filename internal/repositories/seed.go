package repositories

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"catalog/internal/models"
)

//go:embed seed/products.json
var defaultSeed []byte

// DefaultSeed returns the seed document bundled with the binary.
func DefaultSeed() []byte {
	return defaultSeed
}

type seedDocument struct {
	Products []models.Product `json:"products"`
}

// SeedIfEmpty loads the products of a seed document into repo, but only when
// the repository holds no product yet. It reports how many products were
// inserted; zero means the store was already populated.
func SeedIfEmpty(ctx context.Context, repo ProductRepository, data []byte) (int, error) {
	var doc seedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("failed to parse seed document: %w", err)
	}
	if len(doc.Products) == 0 {
		return 0, nil
	}

	n, err := repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	if err := repo.CreateBatch(ctx, doc.Products); err != nil {
		return 0, fmt.Errorf("failed to seed products: %w", err)
	}
	return len(doc.Products), nil
}
