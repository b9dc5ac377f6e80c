package goToken

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goToken/token"
)

const (
	auditEventObtainPair      = "token_obtain_pair"
	auditEventObtainSliding   = "token_obtain_sliding"
	auditEventRefresh         = "token_refresh"
	auditEventSlidingRenew    = "token_sliding_renew"
	auditEventRevoke          = "token_revoke"
	auditEventRevokeAll       = "token_revoke_all"
	auditEventFlushExpired    = "ledger_flush_expired"
	auditEventIdentityFailure = "identity_failure"
)

// AuditErrorCode is the stable error label attached to failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidToken   AuditErrorCode = "invalid_token"
	auditErrExpired        AuditErrorCode = "token_expired"
	auditErrRevoked        AuditErrorCode = "token_revoked"
	auditErrRefreshExpired AuditErrorCode = "refresh_expired"
	auditErrNoUserIdentity AuditErrorCode = "no_user_identification"
	auditErrUserNotFound   AuditErrorCode = "user_not_found"
	auditErrUserInactive   AuditErrorCode = "user_inactive"
	auditErrLedgerDisabled AuditErrorCode = "ledger_disabled"
	auditErrUnavailable    AuditErrorCode = "backend_unavailable"
	auditErrIntegrity      AuditErrorCode = "integrity_violation"
	auditErrInternal       AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	jti string,
	tokenType string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		JTI:       jti,
		TokenType: tokenType,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// auditErrorCode orders the checks from most to least specific; an
// aggregated token error matches ErrTokenInvalid and its causes at once.
func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrIntegrity):
		return auditErrIntegrity
	case errors.Is(err, ErrLedgerUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrLedgerDisabled):
		return auditErrLedgerDisabled
	case errors.Is(err, ErrRefreshExpired):
		return auditErrRefreshExpired
	case errors.Is(err, token.ErrRevoked):
		return auditErrRevoked
	case errors.Is(err, token.ErrExpired):
		return auditErrExpired
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrNoUserIdentification):
		return auditErrNoUserIdentity
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrUserInactive):
		return auditErrUserInactive
	default:
		return auditErrInternal
	}
}
