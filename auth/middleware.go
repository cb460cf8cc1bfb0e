package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/jonwraymond/rpcrelay/jsonrpc"
)

// MiddlewareConfig configures Middleware.
type MiddlewareConfig struct {
	// Skipper bypasses authentication, e.g. for health endpoints.
	Skipper middleware.Skipper

	// AllowAnonymous admits requests that carry no credential.
	AllowAnonymous bool

	Logger zerolog.Logger
}

// Middleware authenticates every request with authn and stores the
// identity on the request context. Rejections are answered with HTTP 401
// and a JSON-RPC error envelope.
func Middleware(authn Authenticator, cfg MiddlewareConfig) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = middleware.DefaultSkipper
	}
	logger := cfg.Logger.With().Str("component", "auth").Logger()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}

			r := c.Request()
			ctx := r.Context()

			id, err := authn.Authenticate(ctx, r.Header)
			switch {
			case err == nil:
			case errors.Is(err, ErrMissingCredentials) && cfg.AllowAnonymous:
				id = Anonymous()
			case rejected(err):
				logger.Debug().Err(err).Str("method", authn.Name()).Str("remote_ip", c.RealIP()).Msg("authentication rejected")
				return reject(c, err)
			default:
				logger.Error().Err(err).Str("method", authn.Name()).Msg("authentication error")
				return c.JSON(http.StatusInternalServerError, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInternal()))
			}

			c.SetRequest(r.WithContext(WithIdentity(ctx, id)))
			return next(c)
		}
	}
}

func reject(c echo.Context, err error) error {
	rpcErr := jsonrpc.NewError(jsonrpc.ErrorCodeServer).WithData("reason", "unauthorized")
	if errors.Is(err, ErrTokenExpired) {
		rpcErr = rpcErr.WithData("reason", "credential expired")
	}
	return c.JSON(http.StatusUnauthorized, jsonrpc.NewErrorResponse(nil, rpcErr))
}
