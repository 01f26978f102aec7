package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"catalog/internal/models"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
// IDs are handed out from a counter that never goes backwards, so a deleted
// ID is never reused.
type MockProductRepository struct {
	products map[int64]models.Product
	lastID   int64
	mu       sync.RWMutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[int64]models.Product),
	}
}

// GetAll returns all products ordered by ID.
func (r *MockProductRepository) GetAll(_ context.Context) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		productList = append(productList, p)
	}
	sort.Slice(productList, func(i, j int) bool { return productList[i].ID < productList[j].ID })
	return productList, nil
}

// GetByID returns a product by its ID.
func (r *MockProductRepository) GetByID(_ context.Context, id int64) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %d: %w", id, ErrProductNotFound)
	}
	return &product, nil
}

// Create adds a new product.
func (r *MockProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.Price < 0 {
		return fmt.Errorf("failed to create product: price must be >= 0")
	}
	if product.ID == 0 {
		product.ID = r.lastID + 1
	} else if _, exists := r.products[product.ID]; exists {
		return fmt.Errorf("failed to create product: ID %d already exists", product.ID)
	}
	if product.ID > r.lastID {
		r.lastID = product.ID
	}
	r.products[product.ID] = *product
	return nil
}

// CreateBatch adds all products or none of them.
func (r *MockProductRepository) CreateBatch(_ context.Context, products []models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[int64]bool, len(products))
	for _, p := range products {
		if p.Price < 0 {
			return fmt.Errorf("failed to create products: price of %q must be >= 0", p.Name)
		}
		if p.ID == 0 {
			continue
		}
		if _, exists := r.products[p.ID]; exists || seen[p.ID] {
			return fmt.Errorf("failed to create products: ID %d already exists", p.ID)
		}
		seen[p.ID] = true
	}
	for _, p := range products {
		if p.ID == 0 {
			p.ID = r.nextID(seen)
		}
		if p.ID > r.lastID {
			r.lastID = p.ID
		}
		r.products[p.ID] = p
	}
	return nil
}

// nextID returns an ID above everything handed out or reserved so far.
func (r *MockProductRepository) nextID(reserved map[int64]bool) int64 {
	id := r.lastID + 1
	for reserved[id] {
		id++
	}
	return id
}

// Update merges patch into an existing product.
func (r *MockProductRepository) Update(_ context.Context, id int64, patch models.ProductPatch) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %d: %w", id, ErrProductNotFound)
	}
	patch.Apply(&product)
	if product.Price < 0 {
		return nil, fmt.Errorf("failed to update product %d: price must be >= 0", id)
	}
	r.products[id] = product
	return &product, nil
}

// Delete removes a product by its ID.
func (r *MockProductRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return fmt.Errorf("product with ID %d: %w", id, ErrProductNotFound)
	}
	delete(r.products, id)
	return nil
}

// Count returns the number of stored products.
func (r *MockProductRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.products)), nil
}
