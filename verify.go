package goToken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goToken/token"
)

// VariantFailure is the reason one variant rejected a token.
type VariantFailure struct {
	Variant   string
	TokenType string
	Message   string
	Err       error
}

// VerifyResult is the outcome of [Engine.Attempt]. Token is nil when every
// variant failed; Failures holds one entry per rejecting variant, in order.
type VerifyResult struct {
	Token    *token.Token
	Failures []VariantFailure
}

// OK reports whether some variant accepted the token.
func (r VerifyResult) OK() bool {
	return r.Token != nil
}

// InvalidTokenError reports a token no accepted variant would take. It
// matches [ErrTokenInvalid] and the cause of every failure, so
// errors.Is(err, token.ErrRevoked) holds for a blacklisted token.
type InvalidTokenError struct {
	Detail   string
	Failures []VariantFailure
}

func (e *InvalidTokenError) Error() string {
	return e.Detail
}

func (e *InvalidTokenError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	errs = append(errs, ErrTokenInvalid)
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// Messages renders the failures as the "messages" array of an error body.
func (e *InvalidTokenError) Messages() []map[string]string {
	out := make([]map[string]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, map[string]string{
			"token_class": f.Variant,
			"token_type":  f.TokenType,
			"message":     f.Message,
		})
	}
	return out
}

func failureOf(v token.Variant, err error) VariantFailure {
	msg := err.Error()
	var te *token.Error
	if errors.As(err, &te) {
		msg = te.Msg
	}
	return VariantFailure{Variant: v.Name, TokenType: v.Type, Message: msg, Err: err}
}

func storageFailure(failures []VariantFailure) bool {
	for _, f := range failures {
		if errors.Is(f.Err, token.ErrStorage) {
			return true
		}
	}
	return false
}

// Attempt parses raw as each variant in order and stops at the first that
// accepts it. It never returns an error; inspect the result.
func (e *Engine) Attempt(ctx context.Context, raw string, variants ...token.Variant) VerifyResult {
	return e.attempt(ctx, raw, variants)
}

func (e *Engine) attempt(ctx context.Context, raw string, variants []token.Variant, opts ...token.ParseOption) VerifyResult {
	var res VerifyResult
	for _, v := range variants {
		t, err := e.factory.Parse(ctx, raw, v, opts...)
		if err == nil {
			res.Token = t
			return res
		}
		res.Failures = append(res.Failures, failureOf(v, err))
	}
	return res
}

// invalid builds the error for a failed attempt. Ledger outages are reported
// as ErrLedgerUnavailable so callers do not mistake them for bad tokens.
func (e *Engine) invalid(detail string, failures []VariantFailure) error {
	inv := &InvalidTokenError{Detail: detail, Failures: failures}
	for _, f := range failures {
		switch {
		case errors.Is(f.Err, token.ErrExpired):
			e.metricInc(MetricTokenExpired)
		case errors.Is(f.Err, token.ErrRevoked):
			e.metricInc(MetricTokenRevokedRejected)
		}
	}
	if storageFailure(failures) {
		e.metricInc(MetricLedgerUnavailable)
		e.logger.Warn().Str("detail", detail).Msg("token revocation state unavailable")
		return fmt.Errorf("%w: %w", ErrLedgerUnavailable, inv)
	}
	return inv
}

// parseOne parses raw as a single variant; the error detail is the variant's
// own message.
func (e *Engine) parseOne(ctx context.Context, raw string, v token.Variant, opts ...token.ParseOption) (*token.Token, error) {
	res := e.attempt(ctx, raw, []token.Variant{v}, opts...)
	if res.OK() {
		return res.Token, nil
	}
	return nil, e.invalid(res.Failures[0].Message, res.Failures)
}

// ValidateToken accepts raw when any of variants accepts it. Without
// variants the configured Auth.TokenVariants are used.
//
//	Performance: CPU only for access tokens; revocable variants add one EXISTS.
func (e *Engine) ValidateToken(ctx context.Context, raw string, variants ...token.Variant) (*token.Token, error) {
	if e == nil || e.factory == nil {
		return nil, ErrEngineNotReady
	}
	if len(variants) == 0 {
		variants = e.authVariants
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}
	res := e.attempt(ctx, raw, variants)
	if !start.IsZero() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	if res.OK() {
		e.metricInc(MetricValidateSuccess)
		return res.Token, nil
	}
	e.metricInc(MetricValidateFailure)
	return nil, e.invalid(ErrTokenInvalid.Error(), res.Failures)
}

// AuthResult is returned by [Engine.Authenticate].
type AuthResult struct {
	User  UserRecord
	Token *token.Token
}

// Authenticate validates raw against Auth.TokenVariants and resolves the user
// it identifies through the [UserProvider].
func (e *Engine) Authenticate(ctx context.Context, raw string) (*AuthResult, error) {
	t, err := e.ValidateToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	if e.userProvider == nil {
		return nil, ErrUserProviderMissing
	}

	userID, ok := t.UserID()
	if !ok || userID == "" {
		return nil, e.identityFailure(ctx, t, ErrNoUserIdentification)
	}

	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, e.identityFailure(ctx, t, ErrUserNotFound)
		}
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	if !user.Active {
		return nil, e.identityFailure(ctx, t, ErrUserInactive)
	}

	return &AuthResult{User: user, Token: t}, nil
}

// AuthenticateStateless validates raw like Authenticate but builds the user
// from the token claims without consulting the identity store.
func (e *Engine) AuthenticateStateless(ctx context.Context, raw string) (*TokenUser, error) {
	t, err := e.ValidateToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	userID, ok := t.UserID()
	if !ok || userID == "" {
		return nil, e.identityFailure(ctx, t, ErrNoUserIdentification)
	}
	return &TokenUser{UserID: userID, Token: t}, nil
}

func (e *Engine) identityFailure(ctx context.Context, t *token.Token, err error) error {
	e.metricInc(MetricIdentityFailure)
	userID, _ := t.UserID()
	e.emitAudit(ctx, auditEventIdentityFailure, false, userID, t.JTI(), t.Type(), err, nil)
	return err
}

// Verify checks that raw is a correctly signed, unexpired token of any type.
// When it carries a jti the ledger is consulted as well.
func (e *Engine) Verify(ctx context.Context, raw string) (*token.Token, error) {
	if e == nil || e.factory == nil {
		return nil, ErrEngineNotReady
	}
	t, err := e.parseOne(ctx, raw, token.Untyped)
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		return nil, err
	}

	if jti := t.JTI(); jti != "" {
		revoked, err := e.factory.IsRevoked(ctx, jti)
		if err != nil {
			e.metricInc(MetricVerifyFailure)
			return nil, e.ledgerError("verify", err)
		}
		if revoked {
			e.metricInc(MetricVerifyFailure)
			return nil, e.invalid("Token is blacklisted", []VariantFailure{{
				Variant:   token.Untyped.Name,
				TokenType: token.Untyped.Type,
				Message:   "Token is blacklisted",
				Err:       token.ErrRevoked,
			}})
		}
	}

	e.metricInc(MetricVerifySuccess)
	return t, nil
}
