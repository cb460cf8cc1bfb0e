package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// APIKeyConfig configures API key authentication.
type APIKeyConfig struct {
	// HeaderName carries the key.
	// Default: "X-API-Key"
	HeaderName string `mapstructure:"header"`

	Keys []APIKeyInfo `mapstructure:"keys" validate:"dive"`
}

// APIKeyInfo describes one accepted API key. Only its hash is configured.
type APIKeyInfo struct {
	// ID names the key in logs.
	ID string `mapstructure:"id" validate:"required"`

	// KeyHash is the SHA-256 hex digest of the key (see HashAPIKey).
	KeyHash string `mapstructure:"hash" validate:"required,len=64,hexadecimal"`

	// Principal is the client the key identifies. Default: ID
	Principal string `mapstructure:"principal"`

	ExpiresAt time.Time `mapstructure:"expires_at"`
}

// APIKeyStore looks up keys by hash.
type APIKeyStore interface {
	// Lookup returns nil, nil if the hash is unknown.
	Lookup(ctx context.Context, keyHash string) (*APIKeyInfo, error)
}

// APIKeyAuthenticator authenticates the key in one request header.
type APIKeyAuthenticator struct {
	header string
	store  APIKeyStore
	now    func() time.Time
}

// NewAPIKeyAuthenticator creates an authenticator reading headerName.
func NewAPIKeyAuthenticator(headerName string, store APIKeyStore) *APIKeyAuthenticator {
	if headerName == "" {
		headerName = "X-API-Key"
	}
	return &APIKeyAuthenticator{header: headerName, store: store, now: time.Now}
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string {
	return string(MethodAPIKey)
}

// Authenticate implements Authenticator.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, h http.Header) (*Identity, error) {
	key := strings.TrimSpace(h.Get(a.header))
	if key == "" {
		return nil, ErrMissingCredentials
	}

	info, err := a.store.Lookup(ctx, HashAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("auth: api key lookup: %w", err)
	}
	if info == nil {
		return nil, ErrInvalidCredentials
	}
	if !info.ExpiresAt.IsZero() && a.now().After(info.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	principal := info.Principal
	if principal == "" {
		principal = info.ID
	}
	return &Identity{
		Principal: principal,
		Method:    MethodAPIKey,
		Claims:    map[string]any{"key_id": info.ID},
		ExpiresAt: info.ExpiresAt,
	}, nil
}

// HashAPIKey returns the hex SHA-256 digest under which key is configured.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// MemoryAPIKeyStore is a fixed set of keys.
type MemoryAPIKeyStore struct {
	keys []APIKeyInfo
}

// NewMemoryAPIKeyStore creates a store holding keys. Hashes are matched
// case-insensitively.
func NewMemoryAPIKeyStore(keys ...APIKeyInfo) *MemoryAPIKeyStore {
	s := &MemoryAPIKeyStore{keys: make([]APIKeyInfo, len(keys))}
	for i, k := range keys {
		k.KeyHash = strings.ToLower(k.KeyHash)
		s.keys[i] = k
	}
	return s
}

// Lookup compares keyHash against every stored hash in constant time.
func (s *MemoryAPIKeyStore) Lookup(_ context.Context, keyHash string) (*APIKeyInfo, error) {
	var found *APIKeyInfo
	for i := range s.keys {
		if subtle.ConstantTimeCompare([]byte(s.keys[i].KeyHash), []byte(keyHash)) == 1 {
			found = &s.keys[i]
		}
	}
	return found, nil
}
