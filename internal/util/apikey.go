package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
)

const APIKeyPrefix = "av_"

// NewAPIKey returns "av_" followed by 64 hex characters.
func NewAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return APIKeyPrefix + hex.EncodeToString(b), nil
}

// HashAPIKey is the sha256 hex digest stored in place of the key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// DisplayPrefix is the first 10 characters followed by "...".
func DisplayPrefix(key string) string {
	if len(key) > 10 {
		key = key[:10]
	}
	return key + "..."
}

func LooksLikeAPIKey(s string) bool { return strings.HasPrefix(s, APIKeyPrefix) }

// NewVerificationCode returns a 6-digit code in [100000, 999999).
func NewVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(899999))
	if err != nil {
		return "", err
	}
	return big.NewInt(0).Add(n, big.NewInt(100000)).String(), nil
}
