// Package middleware exposes HTTP guards that authenticate requests carrying
// an "Authorization: Bearer <token>" header through goToken.Engine.
//
// # Guards
//
//   - [Guard] resolves the token's user through the engine's UserProvider.
//   - [RequireStateless] trusts the token claims and skips the identity store.
//   - [RequireVariants] accepts only the listed token variants and exposes
//     the parsed token.
//
// Each guard reads the Authorization header, delegates to the engine and
// stores the result in the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement token logic itself; every decision is made by the engine.
//
// # What this package must NOT do
//
//   - Parse or sign tokens directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject.
package middleware
