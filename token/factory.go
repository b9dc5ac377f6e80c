package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goToken/ledger"
)

// Codec signs and verifies claim sets. *jwt.Codec satisfies it.
type Codec interface {
	Encode(claims map[string]any) (string, error)
	Decode(raw string, verify bool) (map[string]any, error)
}

// Ledger is the part of the revocation ledger the factory needs.
// *ledger.Store satisfies it.
type Ledger interface {
	RecordOutstanding(ctx context.Context, e ledger.Entry) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Config holds token lifetimes and claim names.
type Config struct {
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	SlidingTTL        time.Duration
	SlidingRefreshTTL time.Duration
	Leeway            time.Duration

	TokenTypeClaim         string
	JTIClaim               string
	UserIDClaim            string
	SlidingRefreshExpClaim string
}

// DefaultConfig returns the lifetimes and claim names used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		AccessTTL:              5 * time.Minute,
		RefreshTTL:             24 * time.Hour,
		SlidingTTL:             5 * time.Minute,
		SlidingRefreshTTL:      24 * time.Hour,
		TokenTypeClaim:         "token_type",
		JTIClaim:               "jti",
		UserIDClaim:            "user_id",
		SlidingRefreshExpClaim: "refresh_exp",
	}
}

// Option customizes a [Factory].
type Option func(*Factory)

// WithClock replaces time.Now as the factory clock.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		if now != nil {
			f.now = now
		}
	}
}

// Factory mints and parses tokens. It is immutable after [NewFactory] and safe
// for concurrent use.
type Factory struct {
	cfg    Config
	codec  Codec
	ledger Ledger
	now    func() time.Time
}

// NewFactory validates cfg and returns a factory. A nil ledger disables
// outstanding tracking and revocation checks.
func NewFactory(cfg Config, codec Codec, l Ledger, opts ...Option) (*Factory, error) {
	if codec == nil {
		return nil, errors.New("token factory requires a codec")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.SlidingTTL <= 0 || cfg.SlidingRefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be > 0")
	}
	if cfg.Leeway < 0 {
		return nil, errors.New("token leeway must be >= 0")
	}
	if cfg.TokenTypeClaim == "" || cfg.JTIClaim == "" || cfg.UserIDClaim == "" || cfg.SlidingRefreshExpClaim == "" {
		return nil, errors.New("token claim names must not be empty")
	}

	f := &Factory{cfg: cfg, codec: codec, ledger: l, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Config returns the factory configuration.
func (f *Factory) Config() Config {
	return f.cfg
}

// Now reads the factory clock.
func (f *Factory) Now() time.Time {
	return f.now()
}

// Tracking reports whether a revocation ledger is attached.
func (f *Factory) Tracking() bool {
	return f.ledger != nil
}

func (f *Factory) lifetime(v Variant) time.Duration {
	if v.Lifetime > 0 {
		return v.Lifetime
	}
	switch v.Type {
	case Access.Type:
		return f.cfg.AccessTTL
	case Refresh.Type:
		return f.cfg.RefreshTTL
	case Sliding.Type:
		return f.cfg.SlidingTTL
	default:
		return 0
	}
}

// New mints an unsigned token of variant v with iat, exp and token_type set.
// Revocable variants get a fresh jti and sliding variants get refresh_exp.
// New does not record the token in the ledger; see [Factory.ForUser].
func (f *Factory) New(v Variant) (*Token, error) {
	life := f.lifetime(v)
	if life <= 0 {
		return nil, fmt.Errorf("variant %s has no lifetime and cannot be minted", v.Name)
	}

	t := &Token{variant: v, claims: make(Claims, 8), factory: f, issuedAt: f.now()}
	t.claims[f.cfg.TokenTypeClaim] = v.Type
	t.SetExp("exp", time.Time{}, life)
	t.SetIAT(time.Time{})
	if v.Revocable {
		t.SetJTI()
	}
	if v.Sliding {
		t.SetExp(f.cfg.SlidingRefreshExpClaim, time.Time{}, f.cfg.SlidingRefreshTTL)
	}
	return t, nil
}

// ForUser mints a token for userID. Revocable tokens are recorded as
// outstanding when a ledger is attached.
func (f *Factory) ForUser(ctx context.Context, v Variant, userID string) (*Token, error) {
	t, err := f.New(v)
	if err != nil {
		return nil, err
	}
	t.claims[f.cfg.UserIDClaim] = userID

	if v.Revocable && f.ledger != nil {
		if err := f.ledger.RecordOutstanding(ctx, f.OutstandingEntry(t)); err != nil {
			return nil, fmt.Errorf("record outstanding token: %w", err)
		}
	}
	return t, nil
}

// OutstandingEntry describes t as a ledger row. ExpiresAt is the latest exp
// the token can ever carry: for a sliding token, a renewal accepted just
// inside the leeway of its outer lifetime still adds a full SlidingTTL.
func (f *Factory) OutstandingEntry(t *Token) ledger.Entry {
	userID, _ := t.UserID()
	e := ledger.Entry{
		JTI:       t.JTI(),
		UserID:    userID,
		TokenType: t.Type(),
	}
	if iat, ok := t.Time("iat"); ok {
		e.CreatedAt = iat.Unix()
	}
	if exp, ok := t.Time("exp"); ok {
		e.ExpiresAt = exp.Unix()
	}
	if t.variant.Sliding {
		if outer, ok := t.Time(f.cfg.SlidingRefreshExpClaim); ok {
			e.ExpiresAt = outer.Add(f.cfg.Leeway + f.cfg.SlidingTTL).Unix()
		}
	}
	return e
}

type parseOptions struct {
	skipRevocation bool
}

// ParseOption customizes [Factory.Parse].
type ParseOption func(*parseOptions)

// SkipRevocationCheck parses a revocable token without consulting the ledger.
// Revocation itself uses it so that revoking twice is not an error.
func SkipRevocationCheck() ParseOption {
	return func(o *parseOptions) {
		o.skipRevocation = true
	}
}

// Parse decodes raw as variant v. Checks run in order: signature, exp,
// token_type, jti (revocable only), then revocation (revocable only).
// Every failure is a *Error.
func (f *Factory) Parse(ctx context.Context, raw string, v Variant, opts ...ParseOption) (*Token, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	claims, err := f.codec.Decode(raw, true)
	if err != nil {
		return nil, newError(KindDecode, "Token is invalid or expired", err)
	}

	t := &Token{variant: v, claims: Claims(claims), factory: f, issuedAt: f.now()}

	if err := t.CheckExp("exp", t.issuedAt); err != nil {
		return nil, err
	}

	typ, ok := t.claims[f.cfg.TokenTypeClaim]
	if !ok {
		return nil, newError(KindClaim, "Token has no type", nil)
	}
	if !v.AnyType && typ != v.Type {
		return nil, newError(KindClaim, "Token has wrong type", nil)
	}

	if !v.Revocable {
		return t, nil
	}
	if t.JTI() == "" {
		return nil, newError(KindClaim, "Token has no id", nil)
	}

	if f.ledger != nil && !o.skipRevocation {
		revoked, err := f.ledger.IsRevoked(ctx, t.JTI())
		if err != nil {
			return nil, newError(KindStorage, "Token revocation state unavailable", err)
		}
		if revoked {
			return nil, newError(KindRevoked, "Token is blacklisted", nil)
		}
	}
	return t, nil
}

// IsRevoked consults the ledger for jti. Without a ledger nothing is revoked.
func (f *Factory) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if f.ledger == nil || jti == "" {
		return false, nil
	}
	return f.ledger.IsRevoked(ctx, jti)
}

// AccessFrom mints an access token carrying every claim of refresh except
// token_type, exp, iat and jti. refresh is not modified.
func (f *Factory) AccessFrom(refresh *Token) (*Token, error) {
	access, err := f.New(Access)
	if err != nil {
		return nil, err
	}
	skip := map[string]struct{}{
		f.cfg.TokenTypeClaim: {},
		f.cfg.JTIClaim:       {},
		"jti":                {},
		"exp":                {},
		"iat":                {},
	}
	for k, v := range refresh.claims {
		if _, ok := skip[k]; ok {
			continue
		}
		access.claims[k] = v
	}
	return access, nil
}

// Rotate returns a copy of t with a fresh jti, iat and exp. Every other
// claim, including the sliding outer lifetime, is carried over. The copy is
// recorded as outstanding when a ledger is attached; t is not modified.
func (f *Factory) Rotate(ctx context.Context, t *Token) (*Token, error) {
	if !t.variant.Revocable {
		return nil, newError(KindClaim, "Token is not rotatable", nil)
	}
	out := &Token{variant: t.variant, claims: t.Claims(), factory: f, issuedAt: f.now()}
	out.SetJTI()
	out.SetExp("exp", time.Time{}, f.lifetime(t.variant))
	out.SetIAT(time.Time{})

	if f.ledger != nil {
		if err := f.ledger.RecordOutstanding(ctx, f.OutstandingEntry(out)); err != nil {
			return nil, fmt.Errorf("record outstanding token: %w", err)
		}
	}
	return out, nil
}

// Renew extends a sliding token. It refuses once exp or the outer
// refresh_exp has passed; otherwise exp becomes now + sliding lifetime and
// the re-signed token is returned.
func (f *Factory) Renew(t *Token) (string, error) {
	if !t.variant.Sliding {
		return "", newError(KindClaim, "Token is not renewable", nil)
	}
	now := f.now()
	if err := t.CheckExp(f.cfg.SlidingRefreshExpClaim, now); err != nil {
		return "", err
	}
	if err := t.CheckExp("exp", now); err != nil {
		return "", err
	}

	t.issuedAt = now
	t.SetExp("exp", now, f.lifetime(t.variant))
	return t.Encode()
}
