package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/marminbh/appstore-notify/internal/config"
)

// HealthHandler reports service status and feature configuration.
type HealthHandler struct {
	cfg *config.Config
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{cfg: cfg}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// HealthCheck handles the health check endpoint. The relay holds no
// connections of its own, so this reports configured capabilities
// rather than probing dependencies.
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	services := map[string]string{
		"lark_webhook": "configured",
		"enrichment":   "disabled",
	}
	if h.cfg.AppStore.EnrichmentEnabled() {
		services["enrichment"] = "enabled"
	}

	return c.JSON(HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	})
}
