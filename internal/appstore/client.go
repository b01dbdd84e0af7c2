package appstore

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marminbh/appstore-notify/internal/config"
	"github.com/marminbh/appstore-notify/internal/models"
)

const (
	defaultBaseURL = "https://api.appstoreconnect.apple.com"

	// metadataTTL bounds how long a cached app name/icon is served
	// before the next lookup refreshes it.
	metadataTTL = 10 * time.Minute

	// iconSize is substituted into templated icon URLs.
	iconSize = 100
)

// Client fetches app display metadata from the App Store Connect API.
//
// It owns two pieces of shared mutable state: the bearer token and the
// per-app metadata cache. Both sit behind one mutex; concurrent
// pipeline invocations may race to refresh, which is harmless since
// every minted token and fetched entry is independently valid.
type Client struct {
	keyID      string
	issuerID   string
	privateKey *ecdsa.PrivateKey
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.Mutex
	token *bearerToken
	cache map[string]models.AppMetadata
}

// NewClient creates a metadata client from the App Store Connect
// credentials. Returns an error if the private key does not parse.
func NewClient(cfg *config.AppStoreConfig, logger *zap.Logger) (*Client, error) {
	key, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		keyID:      cfg.KeyID,
		issuerID:   cfg.IssuerID,
		privateKey: key,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		now:        time.Now,
		cache:      make(map[string]models.AppMetadata),
	}, nil
}

// Lookup resolves display metadata for the event's app. Events keyed by
// a version ID resolve the app through the appStoreVersions endpoint;
// everything else hits the apps endpoint directly. Failures are
// recoverable: the caller renders the card unenriched.
func (c *Client) Lookup(ctx context.Context, event *models.NotificationEvent) (*models.AppMetadata, error) {
	if event.VersionID != "" {
		url := fmt.Sprintf("%s/v1/appStoreVersions/%s?include=app", c.baseURL, event.VersionID)
		return c.fetch(ctx, event.VersionID, url, extractIncludedApp)
	}

	url := fmt.Sprintf("%s/v1/apps/%s", c.baseURL, event.AppID)
	return c.fetch(ctx, event.AppID, url, extractApp)
}

func (c *Client) fetch(ctx context.Context, cacheKey, url string, extract func([]byte) (*models.AppMetadata, error)) (*models.AppMetadata, error) {
	if meta, ok := c.cached(cacheKey); ok {
		return meta, nil
	}

	body, err := c.authorizedGet(ctx, url)
	if err != nil {
		return nil, err
	}

	meta, err := extract(body)
	if err != nil {
		return nil, err
	}
	meta.FetchedAt = c.now()

	c.mu.Lock()
	c.cache[cacheKey] = *meta
	c.mu.Unlock()

	return meta, nil
}

func (c *Client) cached(key string) (*models.AppMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[key]
	if !ok || c.now().Sub(entry.FetchedAt) >= metadataTTL {
		return nil, false
	}
	return &entry, true
}

// authorizedGet performs a bearer-authenticated GET. A 401 invalidates
// the cached token and the mint-and-call sequence is retried exactly
// once.
func (c *Client) authorizedGet(ctx context.Context, url string) ([]byte, error) {
	body, status, err := c.doGet(ctx, url)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.logger.Warn("App Store Connect API returned 401, re-minting token",
			zap.String("url", url),
		)
		c.invalidateToken()
		body, status, err = c.doGet(ctx, url)
		if err != nil {
			return nil, err
		}
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("App Store Connect API returned HTTP %d", status)
	}
	return body, nil
}

func (c *Client) doGet(ctx context.Context, url string) ([]byte, int, error) {
	token, err := c.ensureToken()
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create metadata request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	var body []byte
	if body, err = readAll(resp); err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func (c *Client) ensureToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.valid(c.now()) {
		return c.token.value, nil
	}

	token, err := mintToken(c.keyID, c.issuerID, c.privateKey, c.now())
	if err != nil {
		return "", err
	}
	c.token = token
	return token.value, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}
