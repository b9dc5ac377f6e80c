package middleware

import (
	"context"
	"net/http"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/internal/httperr"
)

type tokenUserContextKey struct{}

// TokenUserFromContext returns the user stored by [RequireStateless].
func TokenUserFromContext(ctx context.Context) (*goToken.TokenUser, bool) {
	u, ok := ctx.Value(tokenUserContextKey{}).(*goToken.TokenUser)
	return u, ok
}

// RequireStateless authenticates the bearer token from its claims alone. No
// identity store lookup is made, so a deleted or disabled user keeps access
// until the token expires.
func RequireStateless(engine *goToken.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				httperr.Write(w, goToken.ErrEngineNotReady)
				return
			}

			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			user, err := engine.AuthenticateStateless(r.Context(), raw)
			if err != nil {
				httperr.Write(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), tokenUserContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
