package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marminbh/appstore-notify/internal/config"
)

func healthApp(cfg *config.Config) *fiber.App {
	app := fiber.New()
	app.Get("/health", NewHealthHandler(cfg).HealthCheck)
	return app
}

func TestHealthCheckEnrichmentDisabled(t *testing.T) {
	app := healthApp(&config.Config{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "healthy", decoded.Status)
	assert.Equal(t, "disabled", decoded.Services["enrichment"])
	assert.Equal(t, "configured", decoded.Services["lark_webhook"])
}

func TestHealthCheckEnrichmentEnabled(t *testing.T) {
	cfg := &config.Config{
		AppStore: config.AppStoreConfig{
			KeyID:      "TESTKEY123",
			IssuerID:   "issuer-1",
			PrivateKey: "pem",
		},
	}
	app := healthApp(cfg)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)

	var decoded HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "enabled", decoded.Services["enrichment"])
}
