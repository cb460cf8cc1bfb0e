package resilience

import (
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
)

// Registry lazily creates one value per upstream URL.
type Registry[T any] struct {
	factory func(key string) T
	items   *xsync.Map[string, T]
}

// NewRegistry creates a registry that builds missing values with factory.
func NewRegistry[T any](factory func(key string) T) *Registry[T] {
	return &Registry[T]{
		factory: factory,
		items:   xsync.NewMap[string, T](),
	}
}

// Get returns the value for key, creating it on first use.
func (r *Registry[T]) Get(key string) T {
	v, _ := r.items.LoadOrCompute(key, func() (T, bool) {
		return r.factory(key), false
	})
	return v
}

// Load returns the value for key without creating it.
func (r *Registry[T]) Load(key string) (T, bool) {
	return r.items.Load(key)
}

// Len returns the number of values.
func (r *Registry[T]) Len() int {
	return r.items.Size()
}

// Range calls fn for each value until fn returns false.
func (r *Registry[T]) Range(fn func(key string, v T) bool) {
	r.items.Range(fn)
}

// NewBreakers returns a registry of breakers named after their upstream.
func NewBreakers(cfg BreakerConfig, logger zerolog.Logger) *Registry[*Breaker] {
	logger = logger.With().Str("component", "breaker").Logger()
	return NewRegistry(func(key string) *Breaker {
		c := cfg
		c.Name = key
		c.Logger = logger
		return NewBreaker(c)
	})
}

// NewBulkheads returns a registry of bulkheads named after their upstream.
func NewBulkheads(cfg BulkheadConfig) *Registry[*Bulkhead] {
	return NewRegistry(func(key string) *Bulkhead {
		c := cfg
		c.Name = key
		return NewBulkhead(c)
	})
}
