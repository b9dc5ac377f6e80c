// Package jwt is the claim codec: it signs a claim mapping into the compact
// three-segment wire form and decodes a compact token back into claims after
// verifying its signature.
//
// # Architecture boundaries
//
// The codec knows nothing about token semantics. It does not check token_type,
// expiry or revocation; those belong to the token package. The only checks
// performed here are structural (segment count, encoding), cryptographic
// (algorithm, key id, signature) and the optional issuer/audience match.
//
// # What this package must NOT do
//
//   - Import goToken, token, or ledger (no upward imports).
//   - Perform I/O, except fetching a configured JWKS document.
package jwt
