package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"catalog/internal/logging"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProductRepository is a mock implementation of repositories.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) CreateBatch(ctx context.Context, products []models.Product) error {
	args := m.Called(ctx, products)
	return args.Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProductRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockPublisher is a mock implementation of services.EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	args := m.Called(ctx, routingKey, body)
	return args.Error(0)
}

func float(v float64) *float64 { return &v }
func str(v string) *string     { return &v }

func decodeEvent(t *testing.T, body []byte) services.ProductEvent {
	t.Helper()
	var ev services.ProductEvent
	require.NoError(t, json.Unmarshal(body, &ev))
	return ev
}

func TestProductService_GetAllProducts(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo, nil, logging.Discard())

	expectedProducts := []models.Product{
		{ID: 1, Name: "Product A", Category: "Misc", Price: 10.0, Description: "A"},
		{ID: 2, Name: "Product B", Category: "Misc", Price: 20.0, Description: "B"},
	}
	mockRepo.On("GetAll", ctx).Return(expectedProducts, nil).Once()

	products, err := service.GetAllProducts(ctx)

	assert.NoError(t, err)
	assert.Equal(t, expectedProducts, products)
	mockRepo.AssertExpectations(t)
}

func TestProductService_GetProductByID(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo, nil, logging.Discard())

	expectedProduct := &models.Product{ID: 1, Name: "Product A", Price: 10.0}

	// Test successful retrieval
	mockRepo.On("GetByID", ctx, int64(1)).Return(expectedProduct, nil).Once()
	product, err := service.GetProductByID(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, expectedProduct, product)

	// Test product not found
	notFound := fmt.Errorf("product with ID 99: %w", repositories.ErrProductNotFound)
	mockRepo.On("GetByID", ctx, int64(99)).Return(nil, notFound).Once()
	product, err = service.GetProductByID(ctx, 99)
	assert.ErrorIs(t, err, repositories.ErrProductNotFound)
	assert.Nil(t, product)
	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProduct(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	publisher := new(MockPublisher)
	service := services.NewProductService(mockRepo, publisher, logging.Discard())

	input := models.ProductInput{Name: "Mug", Category: "Kitchen", Price: float(12.5), Description: "Ceramic"}

	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.Product")).
		Run(func(args mock.Arguments) { args.Get(1).(*models.Product).ID = 9 }).
		Return(nil).Once()
	publisher.On("Publish", ctx, services.EventProductCreated, mock.Anything).Return(nil).Once()

	product, err := service.CreateProduct(ctx, input)

	require.NoError(t, err)
	assert.Equal(t, int64(9), product.ID)
	assert.Equal(t, "Mug", product.Name)
	assert.Equal(t, 12.5, product.Price)

	body := publisher.Calls[0].Arguments.Get(2).([]byte)
	ev := decodeEvent(t, body)
	assert.Equal(t, services.EventProductCreated, ev.Event)
	assert.Equal(t, int64(9), ev.ID)
	require.NotNil(t, ev.Product)
	assert.Equal(t, "Mug", ev.Product.Name)
	mockRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestProductService_CreateProductFailureDoesNotPublish(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	publisher := new(MockPublisher)
	service := services.NewProductService(mockRepo, publisher, logging.Discard())

	mockRepo.On("Create", ctx, mock.Anything).Return(fmt.Errorf("database error")).Once()

	product, err := service.CreateProduct(ctx, models.ProductInput{Name: "Mug", Price: float(1)})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database error")
	assert.Nil(t, product)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestProductService_PublishFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	publisher := new(MockPublisher)
	service := services.NewProductService(mockRepo, publisher, logging.Discard())

	mockRepo.On("Delete", ctx, int64(3)).Return(nil).Once()
	publisher.On("Publish", ctx, services.EventProductDeleted, mock.Anything).Return(fmt.Errorf("broker down")).Once()

	assert.NoError(t, service.DeleteProduct(ctx, 3))
	mockRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestProductService_UpdateProduct(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	publisher := new(MockPublisher)
	service := services.NewProductService(mockRepo, publisher, logging.Discard())

	patch := models.ProductPatch{Price: float(19)}
	updated := &models.Product{ID: 1, Name: "Headphones", Price: 19}

	// Test successful update
	mockRepo.On("Update", ctx, int64(1), patch).Return(updated, nil).Once()
	publisher.On("Publish", ctx, services.EventProductUpdated, mock.Anything).Return(nil).Once()
	product, err := service.UpdateProduct(ctx, 1, patch)
	assert.NoError(t, err)
	assert.Equal(t, updated, product)

	// Test empty patch: the current product is returned and no event is sent
	mockRepo.On("Update", ctx, int64(1), models.ProductPatch{}).Return(updated, nil).Once()
	product, err = service.UpdateProduct(ctx, 1, models.ProductPatch{})
	assert.NoError(t, err)
	assert.Equal(t, updated, product)

	// Test update failure (product not found in repo)
	mockRepo.On("Update", ctx, int64(99), patch).Return(nil, repositories.ErrProductNotFound).Once()
	product, err = service.UpdateProduct(ctx, 99, patch)
	assert.ErrorIs(t, err, repositories.ErrProductNotFound)
	assert.Nil(t, product)

	mockRepo.AssertExpectations(t)
	publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestProductService_DeleteProduct(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	publisher := new(MockPublisher)
	service := services.NewProductService(mockRepo, publisher, logging.Discard())

	// Test successful deletion
	mockRepo.On("Delete", ctx, int64(1)).Return(nil).Once()
	publisher.On("Publish", ctx, services.EventProductDeleted, mock.Anything).Return(nil).Once()
	err := service.DeleteProduct(ctx, 1)
	assert.NoError(t, err)

	ev := decodeEvent(t, publisher.Calls[0].Arguments.Get(2).([]byte))
	assert.Equal(t, int64(1), ev.ID)
	assert.Nil(t, ev.Product)

	// Test deletion failure (product not found)
	mockRepo.On("Delete", ctx, int64(99)).Return(repositories.ErrProductNotFound).Once()
	err = service.DeleteProduct(ctx, 99)
	assert.ErrorIs(t, err, repositories.ErrProductNotFound)

	mockRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}
