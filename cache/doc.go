// Package cache provides the tiered response cache.
//
// A Group orders Backend tiers fast first (MemoryCache in process,
// RedisCache shared) and applies JSON-RPC aware rules on top: error
// responses are never stored, block responses must describe the requested
// block, and the NoExpireIfIrreversible TTL is resolved against the last
// irreversible block number the group has observed.
package cache
