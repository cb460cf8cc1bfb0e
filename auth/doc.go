// Package auth authenticates inbound relay requests.
//
// Authentication is optional: when no method is configured New returns a
// nil Authenticator and the server mounts no middleware. API keys are
// matched by SHA-256 hash; JWTs are HMAC signed and checked for issuer,
// audience and expiry. Middleware adapts an Authenticator to echo and
// answers failures with a JSON-RPC error envelope.
package auth
