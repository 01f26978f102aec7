package services

import (
	"context"
	"encoding/json"
	"time"

	"catalog/internal/models"
	"catalog/internal/repositories"

	"github.com/sirupsen/logrus"
)

// Routing keys of the product events.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
)

// EventPublisher publishes a message under a routing key. *rabbitmq.Client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// ProductEvent is the payload published after a successful mutation.
type ProductEvent struct {
	Event      string          `json:"event"`
	ID         int64           `json:"id"`
	Product    *models.Product `json:"product,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo   repositories.ProductRepository
	events EventPublisher
	log    logrus.FieldLogger
}

// NewProductService creates a new ProductService. events may be nil, in
// which case no event is published.
func NewProductService(repo repositories.ProductRepository, events EventPublisher, logger logrus.FieldLogger) *ProductService {
	return &ProductService{
		repo:   repo,
		events: events,
		log:    logger,
	}
}

// GetAllProducts retrieves all products ordered by ID.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateProduct stores a new product and returns it with its assigned ID.
func (s *ProductService) CreateProduct(ctx context.Context, input models.ProductInput) (*models.Product, error) {
	product := input.Product()
	if err := s.repo.Create(ctx, &product); err != nil {
		return nil, err
	}
	s.publish(ctx, EventProductCreated, product.ID, &product)
	return &product, nil
}

// UpdateProduct applies a partial update and returns the stored result.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error) {
	product, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if !patch.IsEmpty() {
		s.publish(ctx, EventProductUpdated, id, product)
	}
	return product, nil
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, EventProductDeleted, id, nil)
	return nil
}

// publish never fails the caller: the mutation is already committed.
func (s *ProductService) publish(ctx context.Context, event string, id int64, product *models.Product) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(ProductEvent{Event: event, ID: id, Product: product, OccurredAt: time.Now().UTC()})
	if err != nil {
		s.log.WithError(err).Errorf("Failed to marshal %s event for product %d", event, id)
		return
	}
	if err := s.events.Publish(ctx, event, body); err != nil {
		s.log.WithError(err).Warnf("Failed to publish %s event for product %d", event, id)
		return
	}
	s.log.Debugf("Published %s event for product %d", event, id)
}
