// Package schema is the configuration contract checker for the request and
// response shapes of the token endpoints.
//
// Each endpoint has a [Slot]. A slot is configured with the name of a
// component held in a [Registry], and each slot requires a capability
// interface: obtain slots need an [ObtainSchema], the other slots need an
// [InputSchema] whose inputs are [TokenInput]. [Check] resolves every slot
// once at startup and fails with a [*ContractError] naming the slot and the
// contract when a component does not fit.
//
// # What this package must NOT do
//
//   - Import goToken, token, or ledger.
//   - Perform I/O.
package schema
