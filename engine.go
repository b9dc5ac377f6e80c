package goToken

import (
	"context"
	"errors"
	"fmt"

	internalaudit "github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/ledger"
	"github.com/MrEthical07/goToken/schema"
	"github.com/MrEthical07/goToken/token"
	"github.com/rs/zerolog"
)

// Engine issues, verifies and revokes tokens. It is immutable after
// [Builder.Build] and safe for concurrent use.
type Engine struct {
	config       Config
	codec        *jwt.Codec
	factory      *token.Factory
	ledger       *ledger.Store
	schemas      *schema.Set
	userProvider UserProvider
	authVariants []token.Variant
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	logger       zerolog.Logger
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of every counter and histogram.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Schemas returns the endpoint components resolved at build time.
func (e *Engine) Schemas() *schema.Set {
	if e == nil {
		return nil
	}
	return e.schemas
}

// Factory exposes the token factory for callers minting custom variants.
func (e *Engine) Factory() *token.Factory {
	if e == nil {
		return nil
	}
	return e.factory
}

// LedgerEnabled reports whether revocation state is tracked.
func (e *Engine) LedgerEnabled() bool {
	return e != nil && e.ledger != nil
}

// Ping checks that the ledger is reachable. It is a no-op without a ledger.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.ledger == nil {
		return nil
	}
	if err := e.ledger.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	return nil
}

// Inspect decodes raw. With verify false the signature is not checked and
// the claims must not be trusted; this exists for operators and audit.
func (e *Engine) Inspect(raw string, verify bool) (token.Claims, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.codec.Decode(raw, verify)
	if err != nil {
		return nil, err
	}
	return token.Claims(claims), nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, n int) {
	if e == nil || e.metrics == nil || n <= 0 {
		return
	}
	e.metrics.Add(id, uint64(n))
}

// ledgerError maps ledger failures onto root sentinels. Duplicate jti values
// mean the random source or the ledger is broken and are logged loudly.
func (e *Engine) ledgerError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrDuplicateOutstanding):
		e.metricInc(MetricIntegrityViolation)
		e.logger.Error().Err(err).Str("op", op).Msg("token ledger integrity violation")
		return fmt.Errorf("%w: %w", ErrIntegrity, err)
	case errors.Is(err, ledger.ErrOutstandingNotFound):
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	case errors.Is(err, ledger.ErrLedgerUnavailable):
		e.metricInc(MetricLedgerUnavailable)
		e.logger.Warn().Err(err).Str("op", op).Msg("token ledger unavailable")
		return fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	default:
		return err
	}
}
