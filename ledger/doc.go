// Package ledger is the Redis-backed revocation ledger: a durable record of
// every issued revocable token (the outstanding rows) and of which of those
// tokens have been revoked (the blacklist).
//
// # Key layout
//
//	{prefix}:o:{jti}   outstanding row, compact binary encoding
//	{prefix}:b:{jti}   blacklist row, unix seconds of revocation
//	{prefix}:u:{user}  set of jtis issued to a user
//
// Uniqueness of both row kinds is enforced inside Redis with SET NX and Lua
// scripts, so any number of stateless request handlers can share one ledger.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Entry] model. It does NOT decode
// tokens, check expiry of presented tokens, or decide which variants are
// revocable; those responsibilities belong to the token package and the Engine.
//
// # What this package must NOT do
//
//   - Import goToken, token, or jwt (no upward imports).
//   - Hold cross-request state in process memory.
//   - Store raw token strings.
package ledger
