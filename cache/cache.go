package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength bounds a URN key. Longer params are not worth caching.
const MaxKeyLength = 8192

var (
	ErrNilBackend = errors.New("cache: backend is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
	ErrClosed     = errors.New("cache: backend is closed")

	// ErrUncacheable is returned by the JSON-RPC operations for responses
	// that must not be stored. It never reaches clients.
	ErrUncacheable = errors.New("cache: response is uncacheable")
)

// Backend is one cache tier holding encoded responses under URN keys.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Reads never fail: a tier that cannot answer reports a miss.
// - A ttl of 0 stores the value without expiry.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// MultiGet is positional with keys; misses are nil.
	MultiGet(ctx context.Context, keys []string) [][]byte
	// MultiSet writes entries that share one ttl.
	MultiSet(ctx context.Context, entries []Entry, ttl time.Duration) error

	// Delete of a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Clear drops every key the tier owns, and nothing else.
	Clear(ctx context.Context) error
	Close() error
}

// Entry is one MultiSet write.
type Entry struct {
	Key   string
	Value []byte
}

// ValidateKey rejects blank keys, keys over MaxKeyLength and keys spanning
// lines.
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "", strings.ContainsAny(key, "\r\n"):
		return ErrInvalidKey
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	}
	return nil
}
