package handlers

import "github.com/gofiber/fiber/v2"

// HandleHealth reports that the API is up.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}
