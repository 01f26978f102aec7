package cache_test

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"catalog/internal/apiclient"
	"catalog/internal/models"
)

// fakeAPI is an in-memory ProductAPI. List and delete calls can be held
// open until the test releases them.
type fakeAPI struct {
	mu         sync.Mutex
	products   []models.Product
	lastID     int64
	calls      map[string]int
	listErr    error
	deleteErr  map[int64]error
	holdList   chan struct{}
	holdDelete map[int64]chan struct{}
	started    map[string]chan struct{}
}

func newFakeAPI(products ...models.Product) *fakeAPI {
	f := &fakeAPI{
		products:   products,
		calls:      make(map[string]int),
		deleteErr:  make(map[int64]error),
		holdDelete: make(map[int64]chan struct{}),
		started:    make(map[string]chan struct{}),
	}
	for _, p := range products {
		f.lastID = max(f.lastID, p.ID)
	}
	return f
}

func catalog() []models.Product {
	return []models.Product{
		{ID: 1, Name: "Lamp", Category: "Home", Price: 49.99, Description: "Desk lamp"},
		{ID: 2, Name: "Backpack", Category: "Outdoors", Price: 89, Description: "Daypack"},
		{ID: 3, Name: "Kettle", Category: "Kitchen", Price: 35, Description: "Electric kettle"},
	}
}

// startedCh must be called with f.mu held.
func (f *fakeAPI) startedCh(name string) chan struct{} {
	ch, ok := f.started[name]
	if !ok {
		ch = make(chan struct{}, 16)
		f.started[name] = ch
	}
	return ch
}

func (f *fakeAPI) signal(name string) {
	f.mu.Lock()
	ch := f.startedCh(name)
	f.mu.Unlock()
	select {
	case ch <- struct{}{}:
	default:
	}
}

// waitStarted blocks until the named call has reached the fake.
func (f *fakeAPI) waitStarted(t *testing.T, name string) {
	t.Helper()
	f.mu.Lock()
	ch := f.startedCh(name)
	f.mu.Unlock()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("call %s did not start", name)
	}
}

// holdNextList makes the next ListProducts call wait for the returned channel.
func (f *fakeAPI) holdNextList() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holdList = make(chan struct{})
	return f.holdList
}

// holdDeleteOf makes DeleteProduct(id) wait for the returned channel.
func (f *fakeAPI) holdDeleteOf(id int64, err error) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.holdDelete[id] = ch
	if err != nil {
		f.deleteErr[id] = err
	}
	return ch
}

// failDelete makes DeleteProduct(id) fail with err without holding it.
func (f *fakeAPI) failDelete(id int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr[id] = err
}

func (f *fakeAPI) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *fakeAPI) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func notFound() *apiclient.Error {
	return &apiclient.Error{Kind: apiclient.KindNotFound, Status: 404, Message: "Not found"}
}

func (f *fakeAPI) ListProducts(ctx context.Context) ([]models.Product, error) {
	f.mu.Lock()
	f.calls["list"]++
	// The response is computed when the request arrives, not when it is released.
	snapshot := slices.Clone(f.products)
	err := f.listErr
	hold := f.holdList
	f.holdList = nil
	f.mu.Unlock()

	f.signal("list")
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		snapshot = []models.Product{}
	}
	return snapshot, nil
}

func (f *fakeAPI) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get"]++
	for _, p := range f.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, notFound()
}

func (f *fakeAPI) CreateProduct(_ context.Context, input models.ProductInput) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create"]++
	p := input.Product()
	f.lastID++
	p.ID = f.lastID
	f.products = append(f.products, p)
	return &p, nil
}

func (f *fakeAPI) UpdateProduct(_ context.Context, id int64, patch models.ProductPatch) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["update"]++
	for i := range f.products {
		if f.products[i].ID == id {
			patch.Apply(&f.products[i])
			p := f.products[i]
			return &p, nil
		}
	}
	return nil, notFound()
}

func (f *fakeAPI) DeleteProduct(ctx context.Context, id int64) error {
	f.mu.Lock()
	f.calls["delete"]++
	hold := f.holdDelete[id]
	delete(f.holdDelete, id)
	f.mu.Unlock()

	f.signal(fmt.Sprintf("delete/%d", id))
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	idx := slices.IndexFunc(f.products, func(p models.Product) bool { return p.ID == id })
	if idx < 0 {
		return notFound()
	}
	f.products = slices.Delete(f.products, idx, idx+1)
	return nil
}
