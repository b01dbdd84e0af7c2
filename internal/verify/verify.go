package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Signature checks an App Store Connect webhook signature against the
// raw request body using the shared secret.
//
// The header carries a hex-encoded HMAC SHA256 digest of the body, at
// times prefixed in the "sha256=<hex>" style. Any mismatch, a missing
// header, or a missing secret yields false; this function never errors
// so the caller can map false straight to a 401.
func Signature(rawBody []byte, signatureHeader, sharedSecret string) bool {
	received := signatureHeader
	if idx := strings.Index(received, "="); idx >= 0 {
		received = received[idx+1:]
	}

	if received == "" || sharedSecret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(sharedSecret))
	mac.Write(rawBody)
	calculated := hex.EncodeToString(mac.Sum(nil))

	// Constant-time compare to avoid leaking digest bytes via timing.
	return hmac.Equal([]byte(calculated), []byte(received))
}
