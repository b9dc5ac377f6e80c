package goToken

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/goToken/internal/audit"
	internalmetrics "github.com/MrEthical07/goToken/internal/metrics"
	"github.com/MrEthical07/goToken/token"
	"github.com/rs/zerolog"
)

// UserProvider is the identity store the engine resolves token users
// against. GetUserByID returns an error matching [ErrUserNotFound] when the
// user does not exist; any other error is treated as a backend failure.
type UserProvider interface {
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
}

// UserRecord is the user returned by [UserProvider].
type UserRecord struct {
	UserID     string
	Active     bool
	Attributes map[string]any
}

// TokenPair is returned by [Engine.ObtainPair] and [Engine.RefreshPair].
// Refresh is empty after RefreshPair unless rotation is enabled.
type TokenPair struct {
	Access  string
	Refresh string
}

// TokenUser is a user reconstructed from token claims alone, returned by
// [Engine.AuthenticateStateless].
type TokenUser struct {
	UserID string
	Token  *token.Token
}

// Claim returns one claim of the backing token.
func (u *TokenUser) Claim(name string) (any, bool) {
	if u == nil || u.Token == nil {
		return nil, false
	}
	return u.Token.Get(name)
}

// IsAuthenticated is always true for a token user.
func (u *TokenUser) IsAuthenticated() bool {
	return u != nil
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded events to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// LogSink is an [AuditSink] that records events on a zerolog logger.
type LogSink = internalaudit.LogSink

// NewLogSink creates a [LogSink] writing to l.
func NewLogSink(l zerolog.Logger) *LogSink {
	return internalaudit.NewLogSink(l)
}

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies one counter or histogram.
type MetricID = internalmetrics.MetricID

const (
	MetricObtainPair           = MetricID(internalmetrics.MetricObtainPair)
	MetricObtainSliding        = MetricID(internalmetrics.MetricObtainSliding)
	MetricRefreshSuccess       = MetricID(internalmetrics.MetricRefreshSuccess)
	MetricRefreshFailure       = MetricID(internalmetrics.MetricRefreshFailure)
	MetricRefreshRotated       = MetricID(internalmetrics.MetricRefreshRotated)
	MetricSlidingRenewSuccess  = MetricID(internalmetrics.MetricSlidingRenewSuccess)
	MetricSlidingRenewFailure  = MetricID(internalmetrics.MetricSlidingRenewFailure)
	MetricVerifySuccess        = MetricID(internalmetrics.MetricVerifySuccess)
	MetricVerifyFailure        = MetricID(internalmetrics.MetricVerifyFailure)
	MetricValidateSuccess      = MetricID(internalmetrics.MetricValidateSuccess)
	MetricValidateFailure      = MetricID(internalmetrics.MetricValidateFailure)
	MetricTokenExpired         = MetricID(internalmetrics.MetricTokenExpired)
	MetricTokenRevokedRejected = MetricID(internalmetrics.MetricTokenRevokedRejected)
	MetricRevoke               = MetricID(internalmetrics.MetricRevoke)
	MetricRevokeNoop           = MetricID(internalmetrics.MetricRevokeNoop)
	MetricRevokeAll            = MetricID(internalmetrics.MetricRevokeAll)
	MetricFlushExpired         = MetricID(internalmetrics.MetricFlushExpired)
	MetricIdentityFailure      = MetricID(internalmetrics.MetricIdentityFailure)
	MetricIntegrityViolation   = MetricID(internalmetrics.MetricIntegrityViolation)
	MetricLedgerUnavailable    = MetricID(internalmetrics.MetricLedgerUnavailable)
	MetricValidateLatency      = MetricID(internalmetrics.MetricValidateLatency)
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// LatencyBuckets returns the inclusive upper bounds of the latency
// histogram buckets. Observations above the last bound fall into an
// overflow bucket, so snapshots carry len(LatencyBuckets())+1 counts.
func LatencyBuckets() []time.Duration {
	b := internalmetrics.LatencyBounds
	return b[:]
}

// NewMetrics creates a [Metrics] configured by cfg. When Enabled is false,
// all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
