package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/marminbh/appstore-notify/internal/handlers"
)

// SetupRoutes configures all application routes with dependencies
func SetupRoutes(app *fiber.App, healthHandler *handlers.HealthHandler, webhookHandler *handlers.WebhookHandler) {
	// Health check endpoint
	app.Get("/health", healthHandler.HealthCheck)

	// App Store Connect webhook receiver
	app.Post("/webhooks/appstore", webhookHandler.HandleNotification)
}
