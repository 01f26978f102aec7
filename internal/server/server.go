package server

import (
	"errors"

	"catalog/internal/handlers"
	"catalog/internal/middleware"
	"catalog/internal/repositories"
	"catalog/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
)

// AppDeps are the collaborators the HTTP application is built from.
type AppDeps struct {
	Repo           repositories.ProductRepository
	Events         services.EventPublisher
	Logger         *logrus.Logger
	FrontendOrigin string
}

// NewApp wires the service, handlers and middleware into a Fiber app.
func NewApp(deps AppDeps) *fiber.App {
	productService := services.NewProductService(deps.Repo, deps.Events, deps.Logger)
	productHandler := handlers.NewProductHandler(productService, deps.Logger)

	app := fiber.New(fiber.Config{
		AppName:      "catalog",
		ErrorHandler: errorHandler,
	})

	// --- Middleware ---
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(deps.Logger))
	app.Use(recover.New())
	origin := deps.FrontendOrigin
	if origin == "" {
		origin = "*"
	}
	app.Use(cors.New(cors.Config{AllowOrigins: origin}))

	// --- Routes ---
	app.Get("/healthz", handlers.HandleHealth)
	api := app.Group("/api")
	api.Get("/health", handlers.HandleHealth)
	productHandler.RegisterRoutes(api)

	return app
}

// errorHandler answers with a JSON message. Details of server errors stay in the logs.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			message = fe.Message
		}
	}
	return c.Status(code).JSON(fiber.Map{"message": message})
}
