package middleware

import (
	"context"
	"net/http"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/internal/httperr"
	"github.com/MrEthical07/goToken/token"
)

type tokenContextKey struct{}

// TokenFromContext returns the token stored by [RequireVariants].
func TokenFromContext(ctx context.Context) (*token.Token, bool) {
	t, ok := ctx.Value(tokenContextKey{}).(*token.Token)
	return t, ok
}

// RequireVariants accepts a bearer token that any of variants accepts, in
// order, and stores the parsed token. No user is resolved.
func RequireVariants(engine *goToken.Engine, variants ...token.Variant) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil || len(variants) == 0 {
				httperr.Write(w, goToken.ErrEngineNotReady)
				return
			}

			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			t, err := engine.ValidateToken(r.Context(), raw, variants...)
			if err != nil {
				httperr.Write(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), tokenContextKey{}, t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
