package appstore

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marminbh/appstore-notify/internal/config"
	"github.com/marminbh/appstore-notify/internal/models"
)

const appResourceBody = `{
	"data": {
		"type": "apps",
		"id": "123",
		"attributes": {
			"name": "My Great App",
			"iconAssetToken": {"templateUrl": "https://example.com/icon/{w}x{h}bb.{f}"}
		}
	}
}`

func testKey(t *testing.T) (string, *ecdsa.PublicKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	return string(pemBytes), &key.PublicKey
}

func newTestClient(t *testing.T, baseURL, keyPEM string) *Client {
	t.Helper()
	client, err := NewClient(&config.AppStoreConfig{
		KeyID:      "TESTKEY123",
		IssuerID:   "issuer-1",
		PrivateKey: keyPEM,
		APIBaseURL: baseURL,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func appEvent(id string) *models.NotificationEvent {
	return &models.NotificationEvent{AppID: id}
}

func TestLookupFetchesAppMetadata(t *testing.T) {
	keyPEM, pubKey := testKey(t)

	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/apps/123", r.URL.Path)
		authHeader = r.Header.Get("Authorization")
		w.Write([]byte(appResourceBody))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, keyPEM)
	meta, err := client.Lookup(context.Background(), appEvent("123"))
	require.NoError(t, err)

	assert.Equal(t, "My Great App", meta.Name)
	assert.Equal(t, "https://example.com/icon/100x100bb.png", meta.IconURL)
	assert.False(t, meta.FetchedAt.IsZero())

	// The bearer token must be a valid ES256 JWT with the documented
	// claim set.
	require.True(t, strings.HasPrefix(authHeader, "Bearer "))
	token, err := jwt.Parse(strings.TrimPrefix(authHeader, "Bearer "), func(*jwt.Token) (interface{}, error) {
		return pubKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	require.NoError(t, err)
	require.True(t, token.Valid)

	assert.Equal(t, "TESTKEY123", token.Header["kid"])
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "issuer-1", claims["iss"])
	assert.Equal(t, "appstoreconnect-v1", claims["aud"])
	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(tokenLifetime), exp.Time, time.Minute)
}

func TestLookupServesFromCacheWithinTTL(t *testing.T) {
	keyPEM, _ := testKey(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(appResourceBody))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, keyPEM)

	first, err := client.Lookup(context.Background(), appEvent("123"))
	require.NoError(t, err)
	second, err := client.Lookup(context.Background(), appEvent("123"))
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first.Name, second.Name)
}

func TestLookupRefreshesExpiredCache(t *testing.T) {
	keyPEM, _ := testKey(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(appResourceBody))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, keyPEM)
	now := time.Now()
	client.now = func() time.Time { return now }

	_, err := client.Lookup(context.Background(), appEvent("123"))
	require.NoError(t, err)

	now = now.Add(metadataTTL + time.Second)
	_, err = client.Lookup(context.Background(), appEvent("123"))
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestLookupReusesTokenAcrossApps(t *testing.T) {
	keyPEM, _ := testKey(t)

	var tokens []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, r.Header.Get("Authorization"))
		w.Write([]byte(appResourceBody))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, keyPEM)

	_, err := client.Lookup(context.Background(), appEvent("123"))
	require.NoError(t, err)
	_, err = client.Lookup(context.Background(), appEvent("456"))
	require.NoError(t, err)

	require.Len(t, tokens, 2)
	assert.Equal(t, tokens[0], tokens[1])
}

func TestLookupRemintsTokenOn401(t *testing.T) {
	keyPEM, _ := testKey(t)

	var calls atomic.Int32
	var tokens []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, r.Header.Get("Authorization"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(appResourceBody))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, keyPEM)
	meta, err := client.Lookup(context.Background(), appEvent("123"))
	require.NoError(t, err)

	assert.Equal(t, "My Great App", meta.Name)
	assert.Equal(t, int32(2), calls.Load())
	// ECDSA signatures are randomized, so a re-mint produces a
	// different token string.
	require.Len(t, tokens, 2)
	assert.NotEqual(t, tokens[0], tokens[1])
}

func TestLookupSurfacesRepeatedFailure(t *testing.T) {
	keyPEM, _ := testKey(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, keyPEM)
	_, err := client.Lookup(context.Background(), appEvent("123"))

	assert.ErrorContains(t, err, "500")
}

func TestLookupResolvesVersionThroughIncludedApp(t *testing.T) {
	keyPEM, _ := testKey(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/appStoreVersions/v-900", r.URL.Path)
		assert.Equal(t, "app", r.URL.Query().Get("include"))
		w.Write([]byte(`{
			"data": {"type": "appStoreVersions", "id": "v-900"},
			"included": [
				{"type": "betaGroups", "attributes": {"name": "ignored"}},
				{"type": "apps", "attributes": {"name": "My Great App"}}
			]
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, keyPEM)
	event := &models.NotificationEvent{AppID: "v-900", VersionID: "v-900"}

	meta, err := client.Lookup(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, "My Great App", meta.Name)
	assert.Empty(t, meta.IconURL)
}

func TestNewClientRejectsBadKey(t *testing.T) {
	_, err := NewClient(&config.AppStoreConfig{
		KeyID:      "TESTKEY123",
		IssuerID:   "issuer-1",
		PrivateKey: "not a pem key",
	}, zap.NewNop())

	assert.Error(t, err)
}

func TestParsePrivateKeyNormalizesEscapedNewlines(t *testing.T) {
	keyPEM, _ := testKey(t)
	escaped := strings.ReplaceAll(keyPEM, "\n", `\n`)

	key, err := parsePrivateKey(escaped)
	require.NoError(t, err)
	assert.NotNil(t, key)
}

func TestResolveIconTemplate(t *testing.T) {
	assert.Equal(t,
		"https://example.com/icon/100x100bb.png",
		resolveIconTemplate("https://example.com/icon/{w}x{h}bb.{f}", 100),
	)
	assert.Empty(t, resolveIconTemplate("", 100))
}
