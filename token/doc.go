// Package token wraps a claim set in a typed token and owns its lifecycle:
// minting, parsing with structural checks, expiry, renewal of sliding tokens
// and derivation of access tokens from refresh tokens.
//
// # Variants
//
// A [Variant] is a descriptor, not a type hierarchy. Its Revocable flag makes
// the [Factory] attach a jti and consult the revocation ledger; its Sliding
// flag attaches the outer refresh lifetime and enables [Factory.Renew].
//
// # Architecture boundaries
//
// Signing and signature checks are delegated to a [Codec]; revocation state is
// read through a [Ledger]. This package never revokes anything itself.
//
// # What this package must NOT do
//
//   - Import goToken (no upward imports).
//   - Resolve user identities.
//   - Mutate a token passed to [Factory.AccessFrom].
package token
