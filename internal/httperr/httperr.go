// Package httperr renders engine errors as JSON HTTP responses. It is shared
// by the middleware and handler packages so that a rejected token looks the
// same whether a guard or an endpoint rejected it.
package httperr

import (
	"encoding/json"
	"errors"
	"net/http"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/schema"
)

// Body is the error response shape.
type Body struct {
	Detail   any                 `json:"detail"`
	Code     string              `json:"code,omitempty"`
	Messages []map[string]string `json:"messages,omitempty"`
}

// FieldError is one entry of a 422 detail list.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// Response maps err to a status code and body.
func Response(err error) (int, Body) {
	var inv *goToken.InvalidTokenError
	var ve *schema.ValidationError

	switch {
	case errors.Is(err, goToken.ErrLedgerUnavailable):
		return http.StatusServiceUnavailable, Body{Detail: "Service temporarily unavailable", Code: "unavailable"}
	case errors.As(err, &inv):
		return http.StatusUnauthorized, Body{Detail: inv.Detail, Code: "token_not_valid", Messages: inv.Messages()}
	case errors.Is(err, goToken.ErrTokenInvalid):
		return http.StatusUnauthorized, Body{Detail: "Token is invalid or expired", Code: "token_not_valid"}
	case errors.Is(err, goToken.ErrNoUserIdentification):
		return http.StatusUnauthorized, Body{Detail: goToken.ErrNoUserIdentification.Error(), Code: "token_not_valid"}
	case errors.Is(err, goToken.ErrUserNotFound):
		return http.StatusUnauthorized, Body{Detail: goToken.ErrUserNotFound.Error(), Code: "user_not_found"}
	case errors.Is(err, goToken.ErrUserInactive):
		return http.StatusUnauthorized, Body{Detail: goToken.ErrUserInactive.Error(), Code: "user_inactive"}
	case errors.Is(err, goToken.ErrAuthenticationFailed):
		return http.StatusUnauthorized, Body{Detail: goToken.ErrAuthenticationFailed.Error(), Code: "authentication_failed"}
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, Body{Detail: []FieldError{{
			Loc:  []string{"body", ve.Field},
			Msg:  ve.Msg,
			Type: "value_error",
		}}}
	default:
		return http.StatusInternalServerError, Body{Detail: "Internal server error"}
	}
}

// Write renders err. A 401 carries a Bearer challenge.
func Write(w http.ResponseWriter, err error) {
	status, body := Response(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	JSON(w, status, body)
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
