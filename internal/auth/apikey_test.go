package auth

import (
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	bcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func TestGenerateAPIKey(t *testing.T) {
	generated, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(generated.Key, "ns_"))
	assert.Len(t, generated.Key, len("ns_")+APIKeyLength)
	assert.True(t, IsValidAPIKeyFormat(generated.Key))
	assert.True(t, strings.HasPrefix(generated.KeyPrefix, "ns_"))
	assert.True(t, strings.HasSuffix(generated.KeyPrefix, "..."))
	assert.True(t, ValidateAPIKey(generated.Key, generated.Hash))
}

func TestGenerateAPIKey_Uniqueness(t *testing.T) {
	const numKeys = 50
	keys := make(map[string]bool)

	for i := 0; i < numKeys; i++ {
		generated, err := GenerateAPIKey()
		require.NoError(t, err)
		assert.False(t, keys[generated.Key], "Generated duplicate key: %s", generated.Key)
		keys[generated.Key] = true
	}
}

func TestHashAPIKey(t *testing.T) {
	tests := []struct {
		name        string
		apiKey      string
		expectError bool
	}{
		{name: "valid_key", apiKey: "ns_abc123def456ghi789"},
		{name: "empty_key", apiKey: "", expectError: true},
		{name: "long_key", apiKey: strings.Repeat("a", 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashAPIKey(tt.apiKey)

			if tt.expectError {
				assert.Error(t, err)
				assert.Empty(t, hash)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(hash, "$2a$"))
			assert.True(t, ValidateAPIKey(tt.apiKey, hash))
		})
	}
}

func TestValidateAPIKey(t *testing.T) {
	const key = "ns_abc123def456ghi789"
	hash, err := HashAPIKey(key)
	require.NoError(t, err)

	long := strings.Repeat("b", 100)
	longHash, err := HashAPIKey(long)
	require.NoError(t, err)

	tests := []struct {
		name   string
		apiKey string
		hash   string
		want   bool
	}{
		{"matching key", key, hash, true},
		{"wrong key", "ns_zzz123def456ghi789", hash, false},
		{"empty key", "", hash, false},
		{"empty hash", key, "", false},
		{"garbage hash", key, "not-a-hash", false},
		{"long key", long, longHash, true},
		{"long key differing past 72 bytes", long + "c", longHash, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateAPIKey(tt.apiKey, tt.hash))
		})
	}
}

func TestIsValidAPIKeyFormat(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		want   bool
	}{
		{"valid", "ns_abcdefgh12345678", true},
		{"wrong prefix", "sk_abcdefgh12345678", false},
		{"no prefix", "abcdefgh12345678", false},
		{"too short", "ns_abc", false},
		{"too long", "ns_" + strings.Repeat("a", 60), false},
		{"bad characters", "ns_abcdefgh-1234567", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidAPIKeyFormat(tt.apiKey))
		})
	}
}

func TestCreateDisplayPrefix(t *testing.T) {
	assert.Equal(t, "ns_abcdefgh...", CreateDisplayPrefix("ns_abcdefgh12345678"))
	assert.Equal(t, "invalid_key", CreateDisplayPrefix("bogus"))
}

func TestKeyRing(t *testing.T) {
	first, err := GenerateAPIKey()
	require.NoError(t, err)
	second, err := GenerateAPIKey()
	require.NoError(t, err)

	kr := NewKeyRing([]string{first.Hash, "  ", second.Hash})
	assert.True(t, kr.Enabled())

	assert.True(t, kr.Authenticate(first.Key))
	assert.True(t, kr.Authenticate(second.Key))
	assert.True(t, kr.Authenticate(first.Key), "cached key still accepted")
	assert.False(t, kr.Authenticate("ns_abcdefgh12345678"))
	assert.False(t, kr.Authenticate(""))

	assert.False(t, NewKeyRing(nil).Enabled())
	assert.False(t, NewKeyRing([]string{""}).Enabled())
}

func TestKeyRingConcurrent(t *testing.T) {
	generated, err := GenerateAPIKey()
	require.NoError(t, err)
	kr := NewKeyRing([]string{generated.Hash})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, kr.Authenticate(generated.Key))
		}()
	}
	wg.Wait()
}
