package proxy

import "errors"

var (
	// ErrUnsupportedScheme is returned for upstream URLs that are neither
	// http(s) nor ws(s).
	ErrUnsupportedScheme = errors.New("proxy: unsupported upstream url scheme")

	// ErrNoWebsocketTransport is returned when a ws(s) upstream is routed
	// through a Transport built without a connection pool.
	ErrNoWebsocketTransport = errors.New("proxy: no websocket transport configured")
)
