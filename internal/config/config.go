package config

import (
	"fmt"
	"os"
)

type Config struct {
	Server   ServerConfig
	Lark     LarkConfig
	AppStore AppStoreConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type LarkConfig struct {
	// WebhookURL is the Lark group-bot webhook endpoint.
	WebhookURL string
	// SigningSecret is optional; without it messages go out unsigned.
	SigningSecret string
}

type AppStoreConfig struct {
	// WebhookSecret verifies inbound App Store Connect requests.
	WebhookSecret string
	// KeyID, IssuerID and PrivateKey are the App Store Connect API
	// credentials. All three are optional as a group: metadata
	// enrichment is disabled unless every one is present.
	KeyID      string
	IssuerID   string
	PrivateKey string
	// APIBaseURL overrides the App Store Connect API endpoint.
	// Empty means the production API.
	APIBaseURL string
}

func Load() (*Config, error) {
	var missing []string

	get := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}

	config := &Config{
		Server: ServerConfig{
			Port: get("SERVER_PORT"),
			Host: get("SERVER_HOST"),
		},
		Lark: LarkConfig{
			WebhookURL:    get("LARK_WEBHOOK_URL"),
			SigningSecret: os.Getenv("LARK_SIGNING_SECRET"),
		},
		AppStore: AppStoreConfig{
			WebhookSecret: get("APP_STORE_CONNECT_SECRET"),
			KeyID:         os.Getenv("KEY_ID"),
			IssuerID:      os.Getenv("ISSUER_ID"),
			PrivateKey:    os.Getenv("APPSTORE_PRIVATE_KEY"),
			APIBaseURL:    os.Getenv("APPSTORE_API_BASE_URL"),
		},
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return config, nil
}

// EnrichmentEnabled reports whether the App Store Connect API
// credentials are complete enough to fetch app metadata.
func (c *AppStoreConfig) EnrichmentEnabled() bool {
	return c.KeyID != "" && c.IssuerID != "" && c.PrivateKey != ""
}
