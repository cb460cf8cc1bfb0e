package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jonwraymond/rpcrelay/auth"
	"github.com/jonwraymond/rpcrelay/config"
	"github.com/jonwraymond/rpcrelay/health"
	"github.com/jonwraymond/rpcrelay/jsonrpc"
	"github.com/jonwraymond/rpcrelay/proxy"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger.With().Str("component", "server").Logger()
	}
}

// WithHealth serves the aggregator on the health endpoints.
func WithHealth(agg *health.Aggregator, info func() map[string]any) Option {
	return func(s *Server) {
		s.health = agg
		s.serviceInfo = info
	}
}

// WithAuth authenticates JSON-RPC requests. A nil authenticator disables
// authentication.
func WithAuth(authn auth.Authenticator, allowAnonymous bool) Option {
	return func(s *Server) {
		s.authn = authn
		s.allowAnonymous = allowAnonymous
	}
}

// WithRateLimit limits JSON-RPC requests per client, one token per HTTP
// request.
func WithRateLimit(store middleware.RateLimiterStore) Option {
	return func(s *Server) {
		s.limiter = store
	}
}

// WithCloser registers fn to run on Shutdown after the listener stopped,
// in registration order.
func WithCloser(fn func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.closers = append(s.closers, fn)
	}
}

// Server is the relay's HTTP front end.
type Server struct {
	e          *echo.Echo
	cfg        config.ServerConfig
	dispatcher *proxy.Dispatcher
	logger     zerolog.Logger

	health         *health.Aggregator
	serviceInfo    func() map[string]any
	authn          auth.Authenticator
	allowAnonymous bool
	limiter        middleware.RateLimiterStore
	closers        []func(ctx context.Context) error
}

// New creates a server for dispatcher and registers its routes.
func New(cfg config.ServerConfig, dispatcher *proxy.Dispatcher, opts ...Option) *Server {
	s := &Server{
		e:          echo.New(),
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.HTTPErrorHandler = s.errorHandler
	s.e.Server.ReadTimeout = cfg.ReadTimeout
	s.e.Server.WriteTimeout = cfg.WriteTimeout

	s.routes()
	return s
}

func (s *Server) routes() {
	s.e.Use(middleware.Recover())
	s.e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator:    uuid.NewString,
		TargetHeader: HeaderRequestID,
	}))
	s.e.Use(requestLogger(s.logger))

	s.e.GET("/healthz", health.Liveness)
	if s.health != nil {
		detailed := health.Detailed(s.health, s.serviceInfo)
		s.e.GET("/health", detailed)
		s.e.GET("/.well-known/healthcheck.json", detailed)
		s.e.GET("/readyz", health.Readiness(s.health))
	}
	s.e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	var mw []echo.MiddlewareFunc
	if s.cfg.BodyLimit != "" {
		mw = append(mw, middleware.BodyLimit(s.cfg.BodyLimit))
	}
	if s.authn != nil {
		mw = append(mw, auth.Middleware(s.authn, auth.MiddlewareConfig{
			AllowAnonymous: s.allowAnonymous,
			Logger:         s.logger,
		}))
	}
	if s.limiter != nil {
		mw = append(mw, rateLimit(s.limiter))
	}
	s.e.POST("/", s.handleJSONRPC, mw...)
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("listening")
	if err := s.e.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener, waits for in-flight requests and then runs
// the registered closers.
func (s *Server) Shutdown(ctx context.Context) error {
	errs := []error{s.e.Shutdown(ctx)}
	for _, closer := range s.closers {
		errs = append(errs, closer(ctx))
	}
	return errors.Join(errs...)
}

func (s *Server) handleJSONRPC(c echo.Context) error {
	start := time.Now()
	requestID := c.Response().Header().Get(HeaderRequestID)

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	reply := s.dispatcher.Handle(ctx, body, requestID)
	out, err := reply.Body()
	if err != nil {
		return err
	}

	h := c.Response().Header()
	if info, ok := reply.Single(); ok && info.Key != "" {
		h.Set(HeaderURN, info.Key)
		h.Set(HeaderNamespace, info.URN.Namespace)
		if info.URN.API != "" {
			h.Set(HeaderAPI, info.URN.API)
		}
		h.Set(HeaderMethod, info.URN.Method)
		if info.CacheHit {
			h.Set(HeaderCacheHit, info.Key)
		}
	}
	h.Set(HeaderResponseTime, strconv.FormatFloat(time.Since(start).Seconds(), 'f', 6, 64))
	return c.JSONBlob(http.StatusOK, out)
}

// errorHandler answers every unhandled error with a JSON-RPC envelope.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	rpcErr := jsonrpc.ErrInternal()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch status {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			rpcErr = jsonrpc.NewError(jsonrpc.ErrorCodeMethodNotFound)
		case http.StatusRequestEntityTooLarge:
			rpcErr = jsonrpc.ErrInvalidRequest().WithData("reason", "request body too large")
		default:
			rpcErr = jsonrpc.NewError(jsonrpc.ErrorCodeServer)
		}
	} else {
		s.logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
	}

	if requestID := c.Response().Header().Get(HeaderRequestID); requestID != "" {
		rpcErr = rpcErr.WithData("request_id", requestID)
	}
	if err := c.JSON(status, jsonrpc.NewErrorResponse(nil, rpcErr)); err != nil {
		s.logger.Debug().Err(err).Msg("failed to write error response")
	}
}
