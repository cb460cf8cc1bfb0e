package server

// Response headers.
const (
	HeaderRequestID    = "x-rpcrelay-request-id"
	HeaderCacheHit     = "x-rpcrelay-cache-hit"
	HeaderURN          = "x-rpcrelay-urn"
	HeaderNamespace    = "x-rpcrelay-namespace"
	HeaderAPI          = "x-rpcrelay-api"
	HeaderMethod       = "x-rpcrelay-method"
	HeaderResponseTime = "x-rpcrelay-response-time"
)
