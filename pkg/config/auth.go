package config

import (
	"fmt"
	"time"
)

// AuthConfig configures optional JWT bearer authentication.
//
// Disabled by default; the engine is local-first. When enabled every
// endpoint except /health requires a valid token in the Authorization
// header. Tokens are verified against a JWKS endpoint or, for simple
// single-box deployments, an HMAC shared secret.
//
// Example:
//
//	auth:
//	  enabled: true
//	  jwks_url: "https://auth.example.com/.well-known/jwks.json"
//	  issuer: "https://auth.example.com"
//	  audience: "minirag"
type AuthConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=false"`

	// JWKSURL points at a JSON Web Key Set. Mutually exclusive with Secret.
	JWKSURL string `yaml:"jwks_url,omitempty" json:"jwks_url,omitempty" jsonschema:"title=JWKS URL"`

	// Secret enables HS256 verification with a shared key.
	Secret string `yaml:"secret,omitempty" json:"secret,omitempty" jsonschema:"title=HMAC Secret"`

	// Issuer is the expected iss claim (optional).
	Issuer string `yaml:"issuer,omitempty" json:"issuer,omitempty" jsonschema:"title=Issuer"`

	// Audience is the expected aud claim (optional).
	Audience string `yaml:"audience,omitempty" json:"audience,omitempty" jsonschema:"title=Audience"`

	// RefreshInterval is how often the JWKS cache refreshes.
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty" json:"refresh_interval,omitempty" jsonschema:"title=Refresh Interval,default=15m"`

	// ExcludedPaths skip authentication. /health is always excluded.
	ExcludedPaths []string `yaml:"excluded_paths,omitempty" json:"excluded_paths,omitempty" jsonschema:"title=Excluded Paths"`
}

func (c *AuthConfig) SetDefaults() {
	if c.RefreshInterval == 0 {
		c.RefreshInterval = 15 * time.Minute
	}
	if len(c.ExcludedPaths) == 0 {
		c.ExcludedPaths = []string{"/health"}
	}
}

func (c *AuthConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.JWKSURL == "" && c.Secret == "" {
		return fmt.Errorf("jwks_url or secret is required when auth is enabled")
	}
	if c.JWKSURL != "" && c.Secret != "" {
		return fmt.Errorf("jwks_url and secret are mutually exclusive")
	}
	if c.RefreshInterval < time.Minute {
		return fmt.Errorf("refresh_interval must be at least 1 minute")
	}
	return nil
}
