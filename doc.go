// Package goToken issues, verifies and revokes signed claim-bearing session
// tokens backed by a Redis revocation ledger.
//
// Callers exchange an already authenticated user for a token pair (access +
// refresh) or a single self-renewing sliding token, present a token on each
// request, and the [Engine] either resolves the user it identifies or rejects
// it with the reason every accepted token variant gave.
//
// The engine is safe for concurrent use after [Builder.Build].
//
// # Architecture boundaries
//
// goToken is the public surface. It exposes [Engine], [Builder], [Config] and
// value types (TokenPair, VerifyResult, MetricsSnapshot). Signing lives in
// jwt, claim lifecycle in token, revocation state in ledger and endpoint
// shapes in schema. Audit dispatch and counters live under internal/.
//
// # What this package must NOT do
//
//   - Check credentials. The caller proves identity before ObtainPair or
//     ObtainSliding is called.
//   - Keep cross-request state in process memory. Revocation state lives only
//     in the ledger.
//   - Import middleware, handler or the metrics exporters (no import cycles).
//
// # Performance contract
//
// Validating an access token is CPU only: one signature check and no Redis
// round-trip. Revocable variants cost one EXISTS per parse; revocation and
// minting cost one scripted round-trip.
package goToken
