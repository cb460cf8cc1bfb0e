package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/jonwraymond/rpcrelay/auth"
	"github.com/jonwraymond/rpcrelay/jsonrpc"
)

// requestLogger writes one access log line per request.
func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = logger.Warn().Err(v.Error)
			}
			event.
				Str("request_id", c.Response().Header().Get(HeaderRequestID)).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("cache_hit", c.Response().Header().Get(HeaderCacheHit)).
				Msg("request")
			return nil
		},
	})
}

var rateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rpcrelay",
	Subsystem: "server",
	Name:      "rate_limited_total",
	Help:      "Total number of inbound requests rejected by the rate limiter",
})

// rateLimit spends one token per request on the client's bucket. Clients
// are keyed by authenticated principal, falling back to the remote address.
func rateLimit(store middleware.RateLimiterStore) echo.MiddlewareFunc {
	deny := func(c echo.Context) error {
		rateLimited.Inc()
		rpcErr := jsonrpc.NewError(jsonrpc.ErrorCodeServer).WithData("reason", "rate limit exceeded")
		if requestID := c.Response().Header().Get(HeaderRequestID); requestID != "" {
			rpcErr = rpcErr.WithData("request_id", requestID)
		}
		return c.JSON(http.StatusTooManyRequests, jsonrpc.NewErrorResponse(nil, rpcErr))
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if id := auth.IdentityFromContext(c.Request().Context()); id != nil && !id.IsAnonymous() {
				return id.Principal, nil
			}
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, _ error) error {
			return deny(c)
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return deny(c)
		},
	})
}
