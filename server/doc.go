// Package server is the HTTP front end of the relay.
//
// It accepts JSON-RPC bodies on POST / and hands them to a proxy.Dispatcher,
// adding correlation headers to every reply. Health, readiness and
// Prometheus endpoints are served next to it. Build assembles the cache
// tiers, connection pools, resilience policies and health checks from a
// config.Config.
package server
