package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// API key material sizes (in raw bytes, before hex encoding).
const (
	// APIKeyBytes is the public key identifier: 16 bytes, 32 hex chars.
	APIKeyBytes = 16
	// APISecretBytes is the private secret: 32 bytes, 64 hex chars.
	APISecretBytes = 32
)

// GenerateAPIKey produces a fresh key/secret pair from the OS CSPRNG.
// Both values are uppercase hex; the secret is never derived from the key.
// With 128 and 256 bits of entropy a collision against existing records is
// not re-checked.
func GenerateAPIKey() (key, secret string, err error) {
	key, err = randomHexUpper(APIKeyBytes)
	if err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	secret, err = randomHexUpper(APISecretBytes)
	if err != nil {
		return "", "", fmt.Errorf("generate api secret: %w", err)
	}
	return key, secret, nil
}

func randomHexUpper(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// SecretsEqual compares two secrets in constant time.
func SecretsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
