package upstream

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"time"
)

// Policy is the resolved per-URN policy.
type Policy struct {
	URL     string
	TTL     TTL
	Timeout time.Duration
	Retries int
}

// HostLookup resolves a host name. net.DefaultResolver.LookupHost satisfies it.
type HostLookup func(ctx context.Context, host string) ([]string, error)

// ResolverOption configures NewResolver.
type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	validateURLs bool
	lookupHost   HostLookup
}

// WithURLValidation rejects unparsable URLs and, when lookup is non-nil,
// hosts that do not resolve.
func WithURLValidation(lookup HostLookup) ResolverOption {
	return func(o *resolverOptions) {
		o.validateURLs = true
		o.lookupHost = lookup
	}
}

// Resolver answers per-URN policy questions by longest-prefix match.
//
// Contract:
// - Concurrency: safe for concurrent use; immutable after construction.
// - Lookups are O(number of key segments).
// - The "" prefix is the global default of each kind.
type Resolver struct {
	urls      *trie[string]
	ttls      *trie[TTL]
	timeouts  *trie[time.Duration]
	retries   *trie[int]
	translate map[string]bool
	names     []string
}

// NewResolver builds a resolver from cfg.
func NewResolver(ctx context.Context, cfg Config, opts ...ResolverOption) (*Resolver, error) {
	var o resolverOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Resolver{
		urls:      newTrie[string](),
		ttls:      newTrie[TTL](),
		timeouts:  newTrie[time.Duration](),
		retries:   newTrie[int](),
		translate: make(map[string]bool, len(cfg.Upstreams)),
		names:     make([]string, 0, len(cfg.Upstreams)),
	}

	for _, e := range cfg.Upstreams {
		r.names = append(r.names, e.Name)
		r.translate[e.Name] = e.TranslateToAppbase

		for _, p := range e.URLs {
			if o.validateURLs {
				if err := validateURL(ctx, p.Value, o.lookupHost); err != nil {
					return nil, err
				}
			}
			r.urls.insert(p.Prefix, p.Value)
		}
		for _, p := range e.TTLs {
			r.ttls.insert(p.Prefix, p.Value)
		}
		for _, p := range e.Timeouts {
			r.timeouts.insert(p.Prefix, time.Duration(p.Value*float64(time.Second)))
		}
		for _, p := range e.Retries {
			r.retries.insert(p.Prefix, p.Value)
		}
	}

	return r, nil
}

// URL returns the backend URL for key.
func (r *Resolver) URL(key string) (string, error) {
	u, ok := r.urls.longestPrefix(key)
	if !ok {
		return "", &NoURLError{Key: key}
	}
	return u, nil
}

// TTL returns the cache TTL for key. Unconfigured keys are not cached.
func (r *Resolver) TTL(key string) TTL {
	ttl, _ := r.ttls.longestPrefix(key)
	return ttl
}

// Timeout returns the upstream timeout for key; 0 means no timeout.
func (r *Resolver) Timeout(key string) time.Duration {
	d, _ := r.timeouts.longestPrefix(key)
	return d
}

// Retries returns the retry count for key.
func (r *Resolver) Retries(key string) int {
	n, _ := r.retries.longestPrefix(key)
	return n
}

// Resolve returns all policy values for key.
func (r *Resolver) Resolve(key string) (Policy, error) {
	u, err := r.URL(key)
	if err != nil {
		return Policy{}, err
	}
	return Policy{
		URL:     u,
		TTL:     r.TTL(key),
		Timeout: r.Timeout(key),
		Retries: r.Retries(key),
	}, nil
}

// TranslateToAppbase reports whether requests in namespace must be
// rewritten into condenser_api call requests.
func (r *Resolver) TranslateToAppbase(namespace string) bool {
	return r.translate[namespace]
}

// Namespaces returns the configured upstream names in configuration order.
func (r *Resolver) Namespaces() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// URLs returns the distinct configured backend URLs, sorted.
func (r *Resolver) URLs() []string {
	seen := make(map[string]struct{})
	r.urls.walk(func(_ string, u string) {
		seen[u] = struct{}{}
	})
	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func validateURL(ctx context.Context, raw string, lookup HostLookup) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidUpstreamURL, raw, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("%w: %q: unsupported scheme %q", ErrInvalidUpstreamURL, raw, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: %q: missing host", ErrInvalidUpstreamURL, raw)
	}

	if lookup == nil || net.ParseIP(host) != nil {
		return nil
	}
	if _, err := lookup(ctx, host); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidUpstreamHost, host, err)
	}
	return nil
}
