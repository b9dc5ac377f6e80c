// Package handler exposes the engine as JSON endpoints on a chi router.
//
// Each endpoint decodes its body with the schema component configured for
// its slot, so custom input and response shapes registered through
// [goToken.Builder.WithSchema] are honoured without changes here. Credential
// checking is delegated to an [Authenticator]; this package never sees
// passwords beyond passing them through.
//
// Errors are rendered by the same mapping the middleware uses: invalid
// tokens are 401 with a detail and per-variant messages, failed validation is
// 422, a ledger outage is 503.
package handler
