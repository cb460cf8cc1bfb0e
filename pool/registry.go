package pool

import (
	"context"
	"errors"
	"sort"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
)

// Registry lazily creates one Pool per backend URL.
type Registry struct {
	dialer Dialer
	cfg    Config
	logger zerolog.Logger
	pools  *xsync.Map[string, *Pool]
}

// NewRegistry creates a registry whose pools share dialer and cfg.
func NewRegistry(dialer Dialer, cfg Config, logger zerolog.Logger) *Registry {
	return &Registry{
		dialer: dialer,
		cfg:    cfg,
		logger: logger,
		pools:  xsync.NewMap[string, *Pool](),
	}
}

// Get returns the pool for url, creating it on first use.
func (r *Registry) Get(url string) *Pool {
	p, _ := r.pools.LoadOrCompute(url, func() (*Pool, bool) {
		return New(url, r.dialer, r.cfg, r.logger), false
	})
	return p
}

// Stats returns a snapshot per URL.
func (r *Registry) Stats() map[string]Stats {
	out := make(map[string]Stats, r.pools.Size())
	r.pools.Range(func(url string, p *Pool) bool {
		out[url] = p.Stats()
		return true
	})
	return out
}

// URLs returns the URLs with a pool, sorted.
func (r *Registry) URLs() []string {
	urls := make([]string, 0, r.pools.Size())
	r.pools.Range(func(url string, _ *Pool) bool {
		urls = append(urls, url)
		return true
	})
	sort.Strings(urls)
	return urls
}

// Close closes every pool, terminates connections still in use, and waits
// for them to drain.
func (r *Registry) Close(ctx context.Context) error {
	var errs []error
	r.pools.Range(func(_ string, p *Pool) bool {
		p.TerminatePool()
		if err := p.WaitClosed(ctx); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}
