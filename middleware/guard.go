package middleware

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/twofactor"
)

// Guard authenticates the bearer token and then runs the Auth Gate. Sessions
// of users with 2FA enabled get 403 until they verify; store failures get 503
// so the wrapped handler never runs unchecked.
func Guard(engine *twofactor.Engine, parser SubjectParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			subj, ok := subjectFromRequest(parser, r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := WithSubject(r.Context(), subj)
			if err := engine.RequireVerified(ctx, subj); err != nil {
				if errors.Is(err, twofactor.ErrSessionUnverified) {
					http.Error(w, twofactor.MsgTwoFactorRequired, http.StatusForbidden)
					return
				}
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
