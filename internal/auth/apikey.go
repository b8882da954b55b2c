// Package auth implements the API key scheme of the netsweep HTTP API.
// Keys are random strings handed to clients once; the server only keeps
// their bcrypt hashes in its configuration.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// API key generation and validation constants
const (
	// APIKeyLength is the length of the random part of an API key
	APIKeyLength = 32
	// APIKeyPrefix is the standard prefix for all API keys
	APIKeyPrefix = "ns"

	// BcryptCost is the bcrypt cost for hashing API keys
	BcryptCost = 12
	// BcryptMaxInputLength is the maximum input length for bcrypt (72 bytes)
	BcryptMaxInputLength = 72

	minKeyLength = 15
	maxKeyLength = 50
)

// bcryptCost is lowered in tests.
var bcryptCost = BcryptCost

// GeneratedAPIKey is a fresh key and the hash to put in the configuration.
type GeneratedAPIKey struct {
	Key       string `json:"key"`
	Hash      string `json:"hash"`
	KeyPrefix string `json:"key_prefix"`
}

// GenerateAPIKey creates a random key and its bcrypt hash.
func GenerateAPIKey() (*GeneratedAPIKey, error) {
	randomBytes := make([]byte, APIKeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}

	// base32 avoids ambiguous characters; padding falls off with the cut
	randomPart := strings.ToLower(base32.StdEncoding.EncodeToString(randomBytes))[:APIKeyLength]
	fullKey := fmt.Sprintf("%s_%s", APIKeyPrefix, randomPart)

	hash, err := HashAPIKey(fullKey)
	if err != nil {
		return nil, err
	}

	return &GeneratedAPIKey{
		Key:       fullKey,
		Hash:      hash,
		KeyPrefix: CreateDisplayPrefix(fullKey),
	}, nil
}

func keyBytes(apiKey string) []byte {
	b := []byte(apiKey)
	if len(b) > BcryptMaxInputLength {
		sum := sha256.Sum256(b)
		b = sum[:]
	}
	return b
}

// HashAPIKey creates a bcrypt hash of an API key for the configuration file
func HashAPIKey(apiKey string) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("API key cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword(keyBytes(apiKey), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}

	return string(hash), nil
}

// ValidateAPIKey checks if a provided API key matches the stored hash
func ValidateAPIKey(apiKey, storedHash string) bool {
	if apiKey == "" || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), keyBytes(apiKey)) == nil
}

// IsValidAPIKeyFormat checks if an API key has the correct format
func IsValidAPIKeyFormat(apiKey string) bool {
	if !strings.HasPrefix(apiKey, APIKeyPrefix+"_") {
		return false
	}
	if len(apiKey) < minKeyLength || len(apiKey) > maxKeyLength {
		return false
	}

	for _, char := range apiKey {
		if (char < 'a' || char > 'z') &&
			(char < 'A' || char > 'Z') &&
			(char < '0' || char > '9') &&
			char != '_' {
			return false
		}
	}

	return true
}

// CreateDisplayPrefix creates a safe-to-display prefix from a full API key
func CreateDisplayPrefix(apiKey string) string {
	if !IsValidAPIKeyFormat(apiKey) {
		return "invalid_key"
	}

	_, random, _ := strings.Cut(apiKey, "_")
	if len(random) > 8 {
		random = random[:8]
	}
	return fmt.Sprintf("%s_%s...", APIKeyPrefix, random)
}

// KeyRing checks presented keys against a fixed set of hashes. Keys that
// verified once are remembered by their SHA-256 digest so bcrypt runs once
// per key, not once per request.
type KeyRing struct {
	hashes []string

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

// NewKeyRing creates a key ring from bcrypt hashes. Empty entries are
// ignored.
func NewKeyRing(hashes []string) *KeyRing {
	kr := &KeyRing{verified: make(map[[sha256.Size]byte]struct{})}
	for _, h := range hashes {
		if h = strings.TrimSpace(h); h != "" {
			kr.hashes = append(kr.hashes, h)
		}
	}
	return kr
}

// Enabled reports whether any key is configured.
func (kr *KeyRing) Enabled() bool {
	return len(kr.hashes) > 0
}

// Authenticate reports whether apiKey matches one of the hashes.
func (kr *KeyRing) Authenticate(apiKey string) bool {
	if !IsValidAPIKeyFormat(apiKey) {
		return false
	}

	digest := sha256.Sum256([]byte(apiKey))
	kr.mu.RLock()
	_, ok := kr.verified[digest]
	kr.mu.RUnlock()
	if ok {
		return true
	}

	for _, h := range kr.hashes {
		if ValidateAPIKey(apiKey, h) {
			kr.mu.Lock()
			kr.verified[digest] = struct{}{}
			kr.mu.Unlock()
			return true
		}
	}
	return false
}
