package goToken

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrEthical07/goToken/ledger"
	"github.com/MrEthical07/goToken/token"
)

// revocableVariants are the variants Revoke accepts, in attempt order.
var revocableVariants = []token.Variant{token.Refresh, token.Sliding}

// Revoke blacklists a refresh or sliding token. Revoking an already revoked
// token succeeds; the boolean reports whether this call changed state.
//
//	Performance: 1 Redis EVALSHA.
func (e *Engine) Revoke(ctx context.Context, raw string) (bool, error) {
	if e == nil || e.factory == nil {
		return false, ErrEngineNotReady
	}
	if e.ledger == nil {
		return false, ErrLedgerDisabled
	}

	res := e.attempt(ctx, raw, revocableVariants, token.SkipRevocationCheck())
	if !res.OK() {
		err := e.invalid(ErrTokenInvalid.Error(), res.Failures)
		e.emitAudit(ctx, auditEventRevoke, false, "", "", "", err, nil)
		return false, err
	}
	t := res.Token
	userID, _ := t.UserID()

	changed, err := e.ledger.Revoke(ctx, e.factory.OutstandingEntry(t), e.factory.Now())
	if err != nil {
		err = e.ledgerError("revoke", err)
		e.emitAudit(ctx, auditEventRevoke, false, userID, t.JTI(), t.Type(), err, nil)
		return false, err
	}

	if changed {
		e.metricInc(MetricRevoke)
	} else {
		e.metricInc(MetricRevokeNoop)
	}
	e.emitAudit(ctx, auditEventRevoke, true, userID, t.JTI(), t.Type(), nil, func() map[string]string {
		return map[string]string{"changed": strconv.FormatBool(changed)}
	})
	return changed, nil
}

// RevokeAllForUser blacklists every outstanding token of userID and returns
// how many were newly revoked.
func (e *Engine) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	if e == nil || e.factory == nil {
		return 0, ErrEngineNotReady
	}
	if e.ledger == nil {
		return 0, ErrLedgerDisabled
	}
	if userID == "" {
		return 0, ErrNoUserIdentification
	}

	n, err := e.ledger.RevokeAllForUser(ctx, userID, e.factory.Now())
	if err != nil {
		err = e.ledgerError("revoke_all", err)
		e.emitAudit(ctx, auditEventRevokeAll, false, userID, "", "", err, nil)
		return n, err
	}

	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventRevokeAll, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(n)}
	})
	return n, nil
}

// FlushExpired deletes ledger rows whose token has expired and returns how
// many were removed. Expired tokens fail the exp check anyway, so their rows
// carry no information.
func (e *Engine) FlushExpired(ctx context.Context) (int, error) {
	if e == nil || e.factory == nil {
		return 0, ErrEngineNotReady
	}
	if e.ledger == nil {
		return 0, ErrLedgerDisabled
	}

	n, err := e.ledger.FlushExpired(ctx, e.factory.Now())
	if err != nil {
		return n, e.ledgerError("flush_expired", err)
	}
	e.metricAdd(MetricFlushExpired, n)
	e.logger.Info().Int("removed", n).Msg("flushed expired ledger rows")
	e.emitAudit(ctx, auditEventFlushExpired, true, "", "", "", nil, func() map[string]string {
		return map[string]string{"removed": strconv.Itoa(n)}
	})
	return n, nil
}

// OutstandingToken is one ledger row with its revocation state.
type OutstandingToken struct {
	ledger.Entry
	Revoked   bool
	RevokedAt int64
}

// Outstanding lists the tokens recorded for userID, oldest first.
func (e *Engine) Outstanding(ctx context.Context, userID string) ([]OutstandingToken, error) {
	if e == nil || e.factory == nil {
		return nil, ErrEngineNotReady
	}
	if e.ledger == nil {
		return nil, ErrLedgerDisabled
	}

	entries, err := e.ledger.ListForUser(ctx, userID)
	if err != nil {
		return nil, e.ledgerError("outstanding", err)
	}
	out := make([]OutstandingToken, 0, len(entries))
	for _, entry := range entries {
		row := OutstandingToken{Entry: entry}
		b, err := e.ledger.Blacklisted(ctx, entry.JTI)
		switch {
		case err == nil:
			row.Revoked = true
			row.RevokedAt = b.RevokedAt
		case errors.Is(err, ledger.ErrNotBlacklisted):
		default:
			return nil, fmt.Errorf("outstanding %s: %w", entry.JTI, e.ledgerError("outstanding", err))
		}
		out = append(out, row)
	}
	return out, nil
}
