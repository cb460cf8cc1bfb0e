package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "relay-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func TestJWTAuthenticator(t *testing.T) {
	authn := NewJWTAuthenticator(JWTConfig{
		Secret:   testSecret,
		Issuer:   "relay-issuer",
		Audience: "rpcrelay",
	})
	now := time.Now()
	valid := jwt.MapClaims{
		"sub": "indexer-1",
		"iss": "relay-issuer",
		"aud": "rpcrelay",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	with := func(k string, v any) jwt.MapClaims {
		c := jwt.MapClaims{}
		for key, val := range valid {
			c[key] = val
		}
		if v == nil {
			delete(c, k)
		} else {
			c[k] = v
		}
		return c
	}
	hs256 := func(claims jwt.MapClaims) string {
		return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claims)
	}

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "valid", header: hs256(valid)},
		{name: "wrong secret", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), valid), wantErr: ErrInvalidCredentials},
		{name: "expired", header: hs256(with("exp", now.Add(-time.Hour).Unix())), wantErr: ErrTokenExpired},
		{name: "wrong issuer", header: hs256(with("iss", "someone")), wantErr: ErrInvalidCredentials},
		{name: "wrong audience", header: hs256(with("aud", "other")), wantErr: ErrInvalidCredentials},
		{name: "missing subject", header: hs256(with("sub", nil)), wantErr: ErrInvalidCredentials},
		{name: "unsigned", header: "Bearer " + signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid), wantErr: ErrInvalidCredentials},
		{name: "garbage", header: "Bearer not.a.jwt", wantErr: ErrTokenMalformed},
		{name: "empty token", header: "Bearer ", wantErr: ErrMissingCredentials},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", wantErr: ErrMissingCredentials},
		{name: "no header", header: "", wantErr: ErrMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := authn.Authenticate(context.Background(), headers("Authorization", tt.header))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if id.Principal != "indexer-1" || id.Method != MethodJWT {
				t.Errorf("identity = %+v", id)
			}
			if id.ExpiresAt.IsZero() {
				t.Error("expected ExpiresAt from exp claim")
			}
		})
	}
}

func TestJWTAuthenticator_CustomPrincipalClaim(t *testing.T) {
	authn := NewJWTAuthenticator(JWTConfig{Secret: testSecret, PrincipalClaim: "client"})
	token := signToken(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.MapClaims{"client": "explorer"})

	id, err := authn.Authenticate(context.Background(), headers("Authorization", "Bearer "+token))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.Principal != "explorer" {
		t.Errorf("Principal = %q, want explorer", id.Principal)
	}
	if !id.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero without exp", id.ExpiresAt)
	}
}
