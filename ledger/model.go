package ledger

// Entry is an outstanding row: one issued revocable token.
// Timestamps are unix seconds.
type Entry struct {
	JTI       string
	UserID    string
	TokenType string
	CreatedAt int64
	ExpiresAt int64
}

// BlacklistEntry records the revocation of one outstanding token.
type BlacklistEntry struct {
	JTI       string
	RevokedAt int64
}
