// Package audit implements async event dispatching for token lifecycle
// operations: issuance, refresh, renewal, verification failures and
// revocation.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, zerolog logger, JSON lines, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured audit record with timestamp, type, user, jti and metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; that responsibility belongs to the Engine.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goToken or any sibling internal package.
//   - Record raw token strings.
package audit
