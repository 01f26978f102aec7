package handlers

import (
	"encoding/json"
	"errors"
	"strconv"

	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, logger logrus.FieldLogger) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: newValidator(),
		log:      logger,
	}
}

// RegisterRoutes registers the product routes with the Fiber router.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

// HandleGetProducts returns every product ordered by ID.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return h.internalError(c, "list products", err)
	}
	return c.JSON(products)
}

// HandleGetProductByID returns one product.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	id, ok := productID(c)
	if !ok {
		return notFound(c)
	}
	product, err := h.service.GetProductByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return notFound(c)
		}
		return h.internalError(c, "get product", err)
	}
	return c.JSON(product)
}

// HandleCreateProduct validates the full product schema and stores a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var input models.ProductInput
	if ok, err := h.bind(c, &input); !ok {
		return err
	}

	product, err := h.service.CreateProduct(c.UserContext(), input)
	if err != nil {
		return h.internalError(c, "create product", err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct validates the partial schema and merges the present fields.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var patch models.ProductPatch
	if ok, err := h.bind(c, &patch); !ok {
		return err
	}

	id, ok := productID(c)
	if !ok {
		return notFound(c)
	}
	product, err := h.service.UpdateProduct(c.UserContext(), id, patch)
	if err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return notFound(c)
		}
		return h.internalError(c, "update product", err)
	}
	return c.JSON(product)
}

// HandleDeleteProduct removes a product; it answers 204 with an empty body.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id, ok := productID(c)
	if !ok {
		return notFound(c)
	}
	if err := h.service.DeleteProduct(c.UserContext(), id); err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return notFound(c)
		}
		return h.internalError(c, "delete product", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// bind parses the JSON body into out and validates it. It reports false once
// it has answered the request with 400. A field of the wrong JSON type is
// reported with the other field errors; anything else that fails to parse is
// an invalid body.
func (h *ProductHandler) bind(c *fiber.Ctx, out interface{}) (bool, error) {
	var typeErr *json.UnmarshalTypeError
	if err := c.BodyParser(out); err != nil {
		if !errors.As(err, &typeErr) || typeErr.Field == "" {
			h.log.WithError(err).Debug("Error parsing product body")
			return false, invalidBody(c)
		}
	}

	errs := make(map[string]string)
	if err := h.validate.Struct(out); err != nil {
		errs = fieldErrors(err)
	}
	if typeErr != nil {
		errs[typeErr.Field] = typeMessage(typeErr)
	}
	if len(errs) > 0 {
		return false, validationFailed(c, errs)
	}
	return true, nil
}

// productID parses the :id route parameter. Anything that is not a positive
// integer cannot name a product.
func productID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *ProductHandler) internalError(c *fiber.Ctx, action string, err error) error {
	h.log.WithError(err).WithField("request_id", c.Locals("requestid")).Errorf("Failed to %s", action)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Internal server error",
	})
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"message": "Not found",
	})
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"errors":  map[string]string{"body": "Request body must be a JSON object"},
	})
}

func validationFailed(c *fiber.Ctx, errs map[string]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errs,
	})
}
