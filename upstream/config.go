package upstream

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Pair is a [prefix, value] entry of the upstream document.
type Pair[V any] struct {
	Prefix string
	Value  V
}

// UnmarshalJSON decodes a two element array.
func (p *Pair[V]) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: pair must be an array: %v", ErrInvalidConfig, err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("%w: pair must have 2 elements, got %d", ErrInvalidConfig, len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Prefix); err != nil {
		return fmt.Errorf("%w: pair prefix must be a string: %v", ErrInvalidConfig, err)
	}
	if err := json.Unmarshal(raw[1], &p.Value); err != nil {
		return fmt.Errorf("%w: prefix %q: %v", ErrInvalidConfig, p.Prefix, err)
	}
	return nil
}

// MarshalJSON encodes the pair as a two element array.
func (p Pair[V]) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Prefix, p.Value})
}

// Entry configures one upstream namespace.
type Entry struct {
	// Name is the namespace the upstream serves.
	Name string `json:"name"`

	// URLs maps URN prefixes to backend URLs (http, https, ws or wss).
	URLs []Pair[string] `json:"urls"`

	// TTLs maps URN prefixes to cache TTLs.
	TTLs []Pair[TTL] `json:"ttls"`

	// Timeouts maps URN prefixes to upstream timeouts in seconds.
	// 0 disables the timeout.
	Timeouts []Pair[float64] `json:"timeouts"`

	// Retries maps URN prefixes to the number of retries after the first
	// attempt.
	Retries []Pair[int] `json:"retries"`

	// TranslateToAppbase rewrites requests in this namespace into
	// condenser_api call requests before routing.
	TranslateToAppbase bool `json:"translate_to_appbase"`
}

// Config is the upstream document.
type Config struct {
	Upstreams []Entry `json:"upstreams"`
}

// Validate checks structural rules that JSON decoding cannot express.
func (c Config) Validate() error {
	if len(c.Upstreams) == 0 {
		return fmt.Errorf("%w: no upstreams", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Upstreams))
	for _, e := range c.Upstreams {
		if e.Name == "" || strings.Contains(e.Name, ".") {
			return fmt.Errorf("%w: invalid upstream name %q", ErrInvalidConfig, e.Name)
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("%w: duplicate upstream %q", ErrInvalidConfig, e.Name)
		}
		seen[e.Name] = struct{}{}

		for _, p := range e.Timeouts {
			if p.Value < 0 {
				return fmt.Errorf("%w: negative timeout for %q", ErrInvalidConfig, p.Prefix)
			}
		}
		for _, p := range e.Retries {
			if p.Value < 0 {
				return fmt.Errorf("%w: negative retries for %q", ErrInvalidConfig, p.Prefix)
			}
		}
	}
	return nil
}

// DecodeConfig reads an upstream document from r, expanding ${VAR}
// references from the environment first.
func DecodeConfig(r io.Reader) (Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}
	expanded, err := ExpandEnvStrict(string(raw))
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := json.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads the upstream document at path.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return DecodeConfig(f)
}
