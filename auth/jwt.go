package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Secret is the HMAC signing key.
	Secret string `mapstructure:"secret"`

	// Issuer is the expected iss claim (optional).
	Issuer string `mapstructure:"issuer"`

	// Audience is the expected aud claim (optional).
	Audience string `mapstructure:"audience"`

	// HeaderName is the header containing the token.
	// Default: "Authorization"
	HeaderName string `mapstructure:"header"`

	// TokenPrefix is the prefix before the token in the header.
	// Default: "Bearer "
	TokenPrefix string `mapstructure:"prefix"`

	// PrincipalClaim is the claim naming the client.
	// Default: "sub"
	PrincipalClaim string `mapstructure:"principal_claim"`
}

// JWTAuthenticator validates HMAC signed JWTs.
type JWTAuthenticator struct {
	config JWTConfig
	parser *jwt.Parser
	key    []byte
}

// NewJWTAuthenticator creates a JWT authenticator.
func NewJWTAuthenticator(config JWTConfig) *JWTAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.TokenPrefix == "" {
		config.TokenPrefix = "Bearer "
	}
	if config.PrincipalClaim == "" {
		config.PrincipalClaim = "sub"
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(5 * time.Second),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &JWTAuthenticator{
		config: config,
		parser: jwt.NewParser(opts...),
		key:    []byte(config.Secret),
	}
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string {
	return string(MethodJWT)
}

// Authenticate implements Authenticator.
func (a *JWTAuthenticator) Authenticate(_ context.Context, h http.Header) (*Identity, error) {
	raw, ok := strings.CutPrefix(h.Get(a.config.HeaderName), a.config.TokenPrefix)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil, ErrMissingCredentials
	}

	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	principal, _ := claims[a.config.PrincipalClaim].(string)
	if principal == "" {
		return nil, fmt.Errorf("%w: no %s claim", ErrInvalidCredentials, a.config.PrincipalClaim)
	}

	id := &Identity{Principal: principal, Method: MethodJWT, Claims: claims}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, nil
}
