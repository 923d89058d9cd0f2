// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DownloadTokenBytes is the entropy of a download token; the encoded token is
// twice as long.
const DownloadTokenBytes = 32

// TokenGenerator produces opaque, unguessable tokens.
type TokenGenerator interface {
	Generate() (string, error)
}

// HexTokenGenerator reads from crypto/rand and hex-encodes the result.
type HexTokenGenerator struct {
	Bytes int
}

func NewDownloadTokenGenerator() HexTokenGenerator {
	return HexTokenGenerator{Bytes: DownloadTokenBytes}
}

func (g HexTokenGenerator) Generate() (string, error) {
	size := g.Bytes
	if size <= 0 {
		size = DownloadTokenBytes
	}

	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashString is used for log fields where the raw token must not appear.
func HashString(input string) string {
	hasher := sha256.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}

// TokenFingerprint is a short, log-safe identifier for a token.
func TokenFingerprint(token string) string {
	return HashString(token)[:12]
}
