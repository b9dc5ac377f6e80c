package goToken

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goToken/token"
)

// ObtainPair mints a refresh token for userID, records it as outstanding and
// derives an access token from it. Credentials must already be checked.
//
//	Performance: 1 Redis EVALSHA when the ledger is enabled.
func (e *Engine) ObtainPair(ctx context.Context, userID string) (TokenPair, error) {
	if e == nil || e.factory == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if userID == "" {
		return TokenPair{}, ErrNoUserIdentification
	}

	refresh, err := e.factory.ForUser(ctx, token.Refresh, userID)
	if err != nil {
		err = e.ledgerError("obtain_pair", err)
		e.emitAudit(ctx, auditEventObtainPair, false, userID, "", token.Refresh.Type, err, nil)
		return TokenPair{}, err
	}
	access, err := e.factory.AccessFrom(refresh)
	if err != nil {
		return TokenPair{}, err
	}

	pair, err := encodePair(access, refresh)
	if err != nil {
		return TokenPair{}, err
	}

	e.metricInc(MetricObtainPair)
	e.emitAudit(ctx, auditEventObtainPair, true, userID, refresh.JTI(), token.Refresh.Type, nil, nil)
	return pair, nil
}

// ObtainSliding mints a sliding token for userID and records it as
// outstanding.
func (e *Engine) ObtainSliding(ctx context.Context, userID string) (string, error) {
	if e == nil || e.factory == nil {
		return "", ErrEngineNotReady
	}
	if userID == "" {
		return "", ErrNoUserIdentification
	}

	sliding, err := e.factory.ForUser(ctx, token.Sliding, userID)
	if err != nil {
		err = e.ledgerError("obtain_sliding", err)
		e.emitAudit(ctx, auditEventObtainSliding, false, userID, "", token.Sliding.Type, err, nil)
		return "", err
	}
	raw, err := sliding.Encode()
	if err != nil {
		return "", fmt.Errorf("sign sliding token: %w", err)
	}

	e.metricInc(MetricObtainSliding)
	e.emitAudit(ctx, auditEventObtainSliding, true, userID, sliding.JTI(), token.Sliding.Type, nil, nil)
	return raw, nil
}

// RefreshPair exchanges a refresh token for a new access token. With
// Tokens.RotateRefreshTokens a new refresh token is issued too, and with
// Tokens.BlacklistAfterRotation the presented one is revoked first.
func (e *Engine) RefreshPair(ctx context.Context, rawRefresh string) (TokenPair, error) {
	if e == nil || e.factory == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	refresh, err := e.parseOne(ctx, rawRefresh, token.Refresh)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefresh, false, "", "", token.Refresh.Type, err, nil)
		return TokenPair{}, err
	}
	userID, _ := refresh.UserID()

	access, err := e.factory.AccessFrom(refresh)
	if err != nil {
		return TokenPair{}, err
	}
	rawAccess, err := access.Encode()
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	pair := TokenPair{Access: rawAccess}

	if e.config.Tokens.RotateRefreshTokens {
		if e.config.Tokens.BlacklistAfterRotation && e.ledger != nil {
			changed, err := e.ledger.Revoke(ctx, e.factory.OutstandingEntry(refresh), e.factory.Now())
			if err == nil && !changed {
				// A concurrent refresh of the same token revoked it first and
				// owns the rotation.
				err = e.invalid("Token is blacklisted", []VariantFailure{
					failureOf(token.Refresh, &token.Error{Kind: token.KindRevoked, Msg: "Token is blacklisted"}),
				})
			} else if err != nil {
				err = e.ledgerError("refresh_rotate", err)
			}
			if err != nil {
				e.metricInc(MetricRefreshFailure)
				e.emitAudit(ctx, auditEventRefresh, false, userID, refresh.JTI(), token.Refresh.Type, err, nil)
				return TokenPair{}, err
			}
		}
		rotated, err := e.factory.Rotate(ctx, refresh)
		if err != nil {
			return TokenPair{}, e.ledgerError("refresh_rotate", err)
		}
		if pair.Refresh, err = rotated.Encode(); err != nil {
			return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
		}
		e.metricInc(MetricRefreshRotated)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefresh, true, userID, refresh.JTI(), token.Refresh.Type, nil, func() map[string]string {
		return map[string]string{"rotated": fmt.Sprint(pair.Refresh != "")}
	})
	return pair, nil
}

// RefreshSliding renews a sliding token. It fails with ErrRefreshExpired once
// the token's outer lifetime has passed, even if exp has not.
func (e *Engine) RefreshSliding(ctx context.Context, raw string) (string, error) {
	if e == nil || e.factory == nil {
		return "", ErrEngineNotReady
	}

	sliding, err := e.parseOne(ctx, raw, token.Sliding)
	if err != nil {
		e.metricInc(MetricSlidingRenewFailure)
		e.emitAudit(ctx, auditEventSlidingRenew, false, "", "", token.Sliding.Type, err, nil)
		return "", err
	}
	userID, _ := sliding.UserID()

	if err := sliding.CheckExp(e.config.Claims.SlidingRefreshExp, e.factory.Now()); err != nil {
		f := failureOf(token.Sliding, err)
		err = fmt.Errorf("%w: %w", ErrRefreshExpired, e.invalid(f.Message, []VariantFailure{f}))
		e.metricInc(MetricSlidingRenewFailure)
		e.emitAudit(ctx, auditEventSlidingRenew, false, userID, sliding.JTI(), token.Sliding.Type, err, nil)
		return "", err
	}

	renewed, err := e.factory.Renew(sliding)
	if err != nil {
		e.metricInc(MetricSlidingRenewFailure)
		var te *token.Error
		if errors.As(err, &te) {
			return "", e.invalid(te.Msg, []VariantFailure{failureOf(token.Sliding, err)})
		}
		return "", fmt.Errorf("sign sliding token: %w", err)
	}

	e.metricInc(MetricSlidingRenewSuccess)
	e.emitAudit(ctx, auditEventSlidingRenew, true, userID, sliding.JTI(), token.Sliding.Type, nil, nil)
	return renewed, nil
}

func encodePair(access, refresh *token.Token) (TokenPair, error) {
	rawAccess, err := access.Encode()
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	rawRefresh, err := refresh.Encode()
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{Access: rawAccess, Refresh: rawRefresh}, nil
}
