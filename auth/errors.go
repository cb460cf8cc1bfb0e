package auth

import "errors"

var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: credential expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrNoMethods          = errors.New("auth: enabled without any method configured")
)

// rejected reports whether err is a verdict on the presented credentials
// rather than an internal failure.
func rejected(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrMissingCredentials)
}
