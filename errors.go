package goToken

import "errors"

var (
	// ErrTokenInvalid matches every *InvalidTokenError.
	ErrTokenInvalid = errors.New("Given token not valid for any token type")
	// ErrNoUserIdentification is returned when a valid token carries no user claim.
	ErrNoUserIdentification = errors.New("Token contained no recognizable user identification")
	// ErrUserNotFound is returned when the user provider has no user for the token.
	ErrUserNotFound = errors.New("User not found")
	// ErrUserInactive is returned when the token's user is disabled.
	ErrUserInactive = errors.New("User is inactive")
	// ErrAuthenticationFailed is returned by credential checkers when no active
	// account matches the credentials.
	ErrAuthenticationFailed = errors.New("No active account found with the given credentials")
	// ErrRefreshExpired is returned when a sliding token is past its outer lifetime.
	ErrRefreshExpired = errors.New("sliding token refresh lifetime expired")
	// ErrLedgerDisabled is returned by revocation operations when no ledger is configured.
	ErrLedgerDisabled = errors.New("revocation ledger disabled")
	// ErrLedgerUnavailable is returned when the ledger cannot be reached.
	ErrLedgerUnavailable = errors.New("revocation ledger unavailable")
	// ErrIntegrity is returned when ledger uniqueness is violated.
	ErrIntegrity = errors.New("token ledger integrity violation")
	// ErrEngineNotReady is returned by operations on a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUserProviderMissing is returned by Authenticate when no provider is configured.
	ErrUserProviderMissing = errors.New("user provider not configured")
)
