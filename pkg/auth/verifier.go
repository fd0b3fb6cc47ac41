// Package auth verifies JWT bearer tokens for the HTTP API.
package auth

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
)

// Claims are the verified token claims handlers can read from the
// request context.
type Claims struct {
	Subject string
	Email   string
	Role    string
}

// Verifier validates bearer tokens against either a JWKS endpoint or an
// HS256 shared secret, depending on configuration.
type Verifier struct {
	cfg     *config.AuthConfig
	cache   *jwk.Cache
	hmacKey jwk.Key
}

// NewVerifier builds a verifier from config. Returns nil when auth is
// disabled so callers can skip the middleware entirely.
func NewVerifier(ctx context.Context, cfg *config.AuthConfig) (*Verifier, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}

	v := &Verifier{cfg: cfg}
	if cfg.JWKSURL != "" {
		cache := jwk.NewCache(ctx)
		if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(cfg.RefreshInterval)); err != nil {
			return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
		}
		// Initial fetch surfaces bad URLs at startup instead of on the
		// first request.
		if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
			return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", cfg.JWKSURL, err)
		}
		v.cache = cache
		return v, nil
	}

	key, err := jwk.FromRaw([]byte(cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to build HMAC key: %w", err)
	}
	v.hmacKey = key
	return v, nil
}

// Verify parses and validates a token, checking signature, expiration
// and the configured issuer and audience.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParseOption{jwt.WithContext(ctx), jwt.WithValidate(true)}
	if v.cache != nil {
		keyset, err := v.cache.Get(ctx, v.cfg.JWKSURL)
		if err != nil {
			return nil, fmt.Errorf("failed to get JWKS: %w", err)
		}
		opts = append(opts, jwt.WithKeySet(keyset))
	} else {
		opts = append(opts, jwt.WithKey(jwa.HS256, v.hmacKey))
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims := &Claims{Subject: token.Subject()}
	if email, ok := token.Get("email"); ok {
		if s, ok := email.(string); ok {
			claims.Email = s
		}
	}
	if role, ok := token.Get("role"); ok {
		if s, ok := role.(string); ok {
			claims.Role = s
		}
	}
	return claims, nil
}
