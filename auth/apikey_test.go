package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestAPIKeyAuthenticator(t *testing.T) {
	store := NewMemoryAPIKeyStore(
		APIKeyInfo{ID: "frontend", KeyHash: HashAPIKey("valid-key"), Principal: "condenser"},
		APIKeyInfo{ID: "indexer", KeyHash: HashAPIKey("no-principal")},
		APIKeyInfo{ID: "old", KeyHash: HashAPIKey("expired-key"), ExpiresAt: time.Now().Add(-time.Hour)},
	)
	authn := NewAPIKeyAuthenticator("X-API-Key", store)

	tests := []struct {
		name          string
		h             http.Header
		wantErr       error
		wantPrincipal string
	}{
		{name: "valid key", h: headers("X-API-Key", "valid-key"), wantPrincipal: "condenser"},
		{name: "header case", h: headers("x-api-key", "valid-key"), wantPrincipal: "condenser"},
		{name: "surrounding whitespace", h: headers("X-API-Key", "  valid-key "), wantPrincipal: "condenser"},
		{name: "principal defaults to id", h: headers("X-API-Key", "no-principal"), wantPrincipal: "indexer"},
		{name: "unknown key", h: headers("X-API-Key", "nope"), wantErr: ErrInvalidCredentials},
		{name: "expired key", h: headers("X-API-Key", "expired-key"), wantErr: ErrTokenExpired},
		{name: "no header", h: headers(), wantErr: ErrMissingCredentials},
		{name: "other credential", h: headers("Authorization", "Bearer x"), wantErr: ErrMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := authn.Authenticate(context.Background(), tt.h)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if id.Principal != tt.wantPrincipal {
				t.Errorf("Principal = %q, want %q", id.Principal, tt.wantPrincipal)
			}
			if id.Method != MethodAPIKey {
				t.Errorf("Method = %v, want %v", id.Method, MethodAPIKey)
			}
		})
	}
}

type failingStore struct{}

func (failingStore) Lookup(context.Context, string) (*APIKeyInfo, error) {
	return nil, errors.New("store unavailable")
}

func TestAPIKeyAuthenticator_StoreErrorIsInternal(t *testing.T) {
	authn := NewAPIKeyAuthenticator("", failingStore{})
	id, err := authn.Authenticate(context.Background(), headers("X-API-Key", "k"))
	if err == nil || id != nil {
		t.Fatalf("expected internal error, got id=%v err=%v", id, err)
	}
	if rejected(err) {
		t.Errorf("store failure %v must not read as a rejection", err)
	}
}

func TestMemoryAPIKeyStore_UppercaseHash(t *testing.T) {
	upper := []byte(HashAPIKey("k"))
	for i, b := range upper {
		if b >= 'a' && b <= 'f' {
			upper[i] = b - 'a' + 'A'
		}
	}
	store := NewMemoryAPIKeyStore(APIKeyInfo{ID: "k", KeyHash: string(upper)})
	info, _ := store.Lookup(context.Background(), HashAPIKey("k"))
	if info == nil {
		t.Fatal("expected hashes to compare case-insensitively")
	}
}
