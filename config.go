package goToken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/schema"
	"github.com/MrEthical07/goToken/token"
)

// Config is the complete engine configuration. It is built once at startup
// and treated as immutable; the builder clones it.
type Config struct {
	JWT     JWTConfig
	Tokens  TokensConfig
	Claims  ClaimsConfig
	Ledger  LedgerConfig
	Auth    AuthConfig
	Schemas map[schema.Slot]string
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig selects the signing algorithm and key material.
type JWTConfig struct {
	Algorithm string // "HS256" (default), HS384, HS512, RS*, ES*, EdDSA

	// SigningKey is the HMAC secret or the PEM private key. Empty on
	// verify-only deployments.
	SigningKey   []byte
	VerifyingKey []byte

	KeyID      string
	VerifyKeys map[string][]byte

	Issuer   string
	Audience string

	JWKSURL     string
	JWKSRefresh time.Duration
	HTTPTimeout time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokensConfig holds lifetimes and refresh policy.
type TokensConfig struct {
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	SlidingTTL        time.Duration
	SlidingRefreshTTL time.Duration
	Leeway            time.Duration

	// RotateRefreshTokens issues a new refresh token on every RefreshPair.
	RotateRefreshTokens bool
	// BlacklistAfterRotation revokes the presented refresh token once
	// it has been rotated. Requires RotateRefreshTokens and the ledger.
	BlacklistAfterRotation bool
}

// ClaimsConfig names the reserved claims.
type ClaimsConfig struct {
	TokenType         string
	JTI               string
	UserID            string
	SlidingRefreshExp string
}

/*
====================================
LEDGER CONFIG
====================================
*/

// LedgerConfig controls the Redis revocation ledger.
type LedgerConfig struct {
	Enabled bool
	// RequireOutstanding rejects revocation of tokens that were never
	// recorded at mint.
	RequireOutstanding bool
	Prefix             string
	// Retention keeps rows for this long past their expiry. Zero keeps them
	// until FlushExpired.
	Retention time.Duration
}

// AuthConfig selects the variants accepted by Authenticate.
type AuthConfig struct {
	TokenVariants []string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a configuration with every lifetime and claim name
// set. Key material must still be provided.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	tc := token.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			Algorithm:   string(jwt.HS256),
			JWKSRefresh: 15 * time.Minute,
			HTTPTimeout: 5 * time.Second,
		},
		Tokens: TokensConfig{
			AccessTTL:         tc.AccessTTL,
			RefreshTTL:        tc.RefreshTTL,
			SlidingTTL:        tc.SlidingTTL,
			SlidingRefreshTTL: tc.SlidingRefreshTTL,
		},
		Claims: ClaimsConfig{
			TokenType:         tc.TokenTypeClaim,
			JTI:               tc.JTIClaim,
			UserID:            tc.UserIDClaim,
			SlidingRefreshExp: tc.SlidingRefreshExpClaim,
		},
		Ledger: LedgerConfig{
			Enabled:            true,
			RequireOutstanding: true,
			Prefix:             "gtl",
		},
		Auth: AuthConfig{
			TokenVariants: []string{token.Access.Name},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.SigningKey = cloneBytes(cfg.JWT.SigningKey)
	out.JWT.VerifyingKey = cloneBytes(cfg.JWT.VerifyingKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	out.Auth.TokenVariants = append([]string(nil), cfg.Auth.TokenVariants...)
	if cfg.Schemas != nil {
		out.Schemas = make(map[schema.Slot]string, len(cfg.Schemas))
		for slot, name := range cfg.Schemas {
			out.Schemas[slot] = name
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration error. Key material itself is
// checked when the codec is constructed.
func (c *Config) Validate() error {
	// JWT
	if !jwt.Supported(jwt.Algorithm(c.JWT.Algorithm)) {
		return fmt.Errorf("unsupported JWT algorithm %q", c.JWT.Algorithm)
	}
	if c.JWT.JWKSRefresh < 0 || c.JWT.HTTPTimeout < 0 {
		return errors.New("JWT JWKSRefresh and HTTPTimeout must be >= 0")
	}

	// Tokens
	if c.Tokens.AccessTTL <= 0 {
		return errors.New("Tokens AccessTTL must be > 0")
	}
	if c.Tokens.RefreshTTL <= 0 {
		return errors.New("Tokens RefreshTTL must be > 0")
	}
	if c.Tokens.SlidingTTL <= 0 {
		return errors.New("Tokens SlidingTTL must be > 0")
	}
	if c.Tokens.SlidingRefreshTTL < c.Tokens.SlidingTTL {
		return errors.New("Tokens SlidingRefreshTTL must be >= SlidingTTL")
	}
	if c.Tokens.Leeway < 0 {
		return errors.New("Tokens Leeway must be >= 0")
	}
	if c.Tokens.BlacklistAfterRotation && !c.Tokens.RotateRefreshTokens {
		return errors.New("Tokens BlacklistAfterRotation requires RotateRefreshTokens")
	}
	if c.Tokens.BlacklistAfterRotation && !c.Ledger.Enabled {
		return errors.New("Tokens BlacklistAfterRotation requires the ledger")
	}

	// Claims
	names := map[string]string{
		"TokenType":         c.Claims.TokenType,
		"JTI":               c.Claims.JTI,
		"UserID":            c.Claims.UserID,
		"SlidingRefreshExp": c.Claims.SlidingRefreshExp,
	}
	seen := make(map[string]string, len(names))
	for field, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("Claims %s must not be empty", field)
		}
		if name == "exp" || name == "iat" {
			return fmt.Errorf("Claims %s must not reuse reserved claim %q", field, name)
		}
		if other, ok := seen[name]; ok {
			return fmt.Errorf("Claims %s and %s share claim name %q", other, field, name)
		}
		seen[name] = field
	}

	// Ledger
	if c.Ledger.Enabled && c.Ledger.Prefix == "" {
		return errors.New("Ledger Prefix must not be empty")
	}
	if c.Ledger.Retention < 0 {
		return errors.New("Ledger Retention must be >= 0")
	}

	// Auth
	if len(c.Auth.TokenVariants) == 0 {
		return errors.New("Auth TokenVariants must name at least one variant")
	}
	for _, name := range c.Auth.TokenVariants {
		if _, ok := token.VariantByName(name); !ok {
			return fmt.Errorf("Auth TokenVariants: unknown variant %q", name)
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	return nil
}

func (c Config) codecConfig() jwt.Config {
	return jwt.Config{
		Algorithm:    jwt.Algorithm(c.JWT.Algorithm),
		SigningKey:   cloneBytes(c.JWT.SigningKey),
		VerifyingKey: cloneBytes(c.JWT.VerifyingKey),
		KeyID:        c.JWT.KeyID,
		VerifyKeys:   c.JWT.VerifyKeys,
		Issuer:       c.JWT.Issuer,
		Audience:     c.JWT.Audience,
		JWKSURL:      c.JWT.JWKSURL,
		JWKSRefresh:  c.JWT.JWKSRefresh,
		HTTPTimeout:  c.JWT.HTTPTimeout,
	}
}

func (c Config) tokenConfig() token.Config {
	return token.Config{
		AccessTTL:              c.Tokens.AccessTTL,
		RefreshTTL:             c.Tokens.RefreshTTL,
		SlidingTTL:             c.Tokens.SlidingTTL,
		SlidingRefreshTTL:      c.Tokens.SlidingRefreshTTL,
		Leeway:                 c.Tokens.Leeway,
		TokenTypeClaim:         c.Claims.TokenType,
		JTIClaim:               c.Claims.JTI,
		UserIDClaim:            c.Claims.UserID,
		SlidingRefreshExpClaim: c.Claims.SlidingRefreshExp,
	}
}

func (c Config) authVariants() []token.Variant {
	out := make([]token.Variant, 0, len(c.Auth.TokenVariants))
	for _, name := range c.Auth.TokenVariants {
		if v, ok := token.VariantByName(name); ok {
			out = append(out, v)
		}
	}
	return out
}
