package auth

// Config selects the inbound authentication methods.
type Config struct {
	// Enabled turns authentication on. At least one of APIKey.Keys or
	// JWT.Secret must then be set.
	Enabled bool `mapstructure:"enabled"`

	// AllowAnonymous lets requests without any credential through as the
	// anonymous identity. Requests with bad credentials are still rejected.
	AllowAnonymous bool `mapstructure:"allow_anonymous"`

	APIKey APIKeyConfig `mapstructure:"api_key"`
	JWT    JWTConfig    `mapstructure:"jwt"`
}

// New builds the configured authenticator: a Chain when both methods are
// configured, API keys first. It returns nil, nil when authentication is
// disabled.
func New(cfg Config) (Authenticator, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var chain Chain
	if len(cfg.APIKey.Keys) > 0 {
		chain = append(chain, NewAPIKeyAuthenticator(cfg.APIKey.HeaderName, NewMemoryAPIKeyStore(cfg.APIKey.Keys...)))
	}
	if cfg.JWT.Secret != "" {
		chain = append(chain, NewJWTAuthenticator(cfg.JWT))
	}

	switch len(chain) {
	case 0:
		return nil, ErrNoMethods
	case 1:
		return chain[0], nil
	default:
		return chain, nil
	}
}
