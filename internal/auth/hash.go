package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashToken returns the SHA-256 hex digest of a raw bearer token or
// upstream API key. Storage and lookup use the hash exclusively.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateProxyToken mints a new raw proxy token. The raw value is shown
// to the caller exactly once; only the hash is persisted.
func GenerateProxyToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return "xproxy_" + hex.EncodeToString(buf), nil
}
