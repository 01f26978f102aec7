package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"catalog/internal/logging"
	"catalog/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedProductsUsesBundledSeed(t *testing.T) {
	repo := repositories.NewMockProductRepository()

	seedProducts(repo, "", logging.Discard())

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
}

func TestSeedProductsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	doc := `{"products":[{"id":1,"name":"Mug","category":"Kitchen","price":12.5,"description":"Ceramic"}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	repo := repositories.NewMockProductRepository()

	seedProducts(repo, path, logging.Discard())

	all, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Mug", all[0].Name)
}

func TestSeedProductsSkipsBrokenSeed(t *testing.T) {
	repo := repositories.NewMockProductRepository()

	seedProducts(repo, filepath.Join(t.TempDir(), "missing.json"), logging.Discard())

	broken := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0o600))
	seedProducts(repo, broken, logging.Discard())

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSeedProductsLeavesPopulatedStore(t *testing.T) {
	repo := repositories.NewMockProductRepository()
	seedProducts(repo, "", logging.Discard())
	require.NoError(t, repo.Delete(context.Background(), 1))

	seedProducts(repo, "", logging.Discard())

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
