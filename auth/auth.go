package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Method names how a client authenticated.
type Method string

const (
	MethodJWT       Method = "jwt"
	MethodAPIKey    Method = "api_key"
	MethodAnonymous Method = "anonymous"
)

// Identity is an authenticated client.
type Identity struct {
	// Principal names the client; it keys per-client rate limits.
	Principal string
	Method    Method
	// Claims holds token claims or key metadata. Read only.
	Claims map[string]any
	// ExpiresAt is zero for credentials that never expire.
	ExpiresAt time.Time
}

// IsAnonymous reports whether no credential was presented.
func (id *Identity) IsAnonymous() bool {
	return id.Method == MethodAnonymous || id.Principal == ""
}

var anonymous = &Identity{Principal: "anonymous", Method: MethodAnonymous}

// Anonymous returns the identity of requests admitted without credentials.
func Anonymous() *Identity { return anonymous }

// Authenticator resolves the client behind the credentials of a request.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: ErrMissingCredentials when the headers carry none of the
//   authenticator's credentials; ErrInvalidCredentials, ErrTokenExpired or
//   ErrTokenMalformed when they are rejected. Anything else is internal.
type Authenticator interface {
	Name() string
	Authenticate(ctx context.Context, h http.Header) (*Identity, error)
}

// Chain consults its authenticators in order. The first one whose
// credentials are present decides.
type Chain []Authenticator

// Name joins the member names with "+".
func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, a := range c {
		names[i] = a.Name()
	}
	return strings.Join(names, "+")
}

// Authenticate implements Authenticator.
func (c Chain) Authenticate(ctx context.Context, h http.Header) (*Identity, error) {
	for _, a := range c {
		id, err := a.Authenticate(ctx, h)
		if errors.Is(err, ErrMissingCredentials) {
			continue
		}
		return id, err
	}
	return nil, ErrMissingCredentials
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by the middleware, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
