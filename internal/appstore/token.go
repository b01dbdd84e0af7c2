package appstore

import (
	"crypto/ecdsa"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// tokenAudience is the fixed audience App Store Connect expects.
	tokenAudience = "appstoreconnect-v1"
	// tokenLifetime stays at the platform's 20 minute hard cap.
	tokenLifetime = 20 * time.Minute
	// tokenRefreshMargin re-mints a token this close to expiry so an
	// in-flight request never races the cutoff.
	tokenRefreshMargin = time.Minute
)

// bearerToken is the process-wide API credential, owned exclusively by
// Client and replaced wholesale on expiry.
type bearerToken struct {
	value     string
	expiresAt time.Time
}

func (t *bearerToken) valid(now time.Time) bool {
	return t != nil && t.value != "" && now.Before(t.expiresAt.Add(-tokenRefreshMargin))
}

// mintToken signs a fresh ES256 JWT for the App Store Connect API.
func mintToken(keyID, issuerID string, privateKey *ecdsa.PrivateKey, now time.Time) (*bearerToken, error) {
	expiresAt := now.Add(tokenLifetime)

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": issuerID,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
		"aud": tokenAudience,
	})
	token.Header["kid"] = keyID

	signed, err := token.SignedString(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign App Store Connect token: %w", err)
	}

	return &bearerToken{value: signed, expiresAt: expiresAt}, nil
}

// parsePrivateKey loads the configured P-256 key. Keys delivered via
// environment variables often carry literal "\n" sequences instead of
// newlines; normalize those before parsing.
func parsePrivateKey(pemData string) (*ecdsa.PrivateKey, error) {
	pemData = strings.ReplaceAll(pemData, `\n`, "\n")

	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(pemData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse App Store Connect private key: %w", err)
	}
	return key, nil
}
