package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/twofactor/session"
)

// SubjectParser turns a bearer token into the caller's subject.
// *jwt.Manager implements it.
type SubjectParser interface {
	ParseSubject(token string) (session.Subject, error)
}

type subjectContextKey struct{}

// WithSubject returns a copy of ctx carrying subj.
func WithSubject(ctx context.Context, subj session.Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subj)
}

// SubjectFromContext returns the subject stored by [Authenticate] or [Guard].
func SubjectFromContext(ctx context.Context) (session.Subject, bool) {
	subj, ok := ctx.Value(subjectContextKey{}).(session.Subject)
	return subj, ok
}

// Authenticate requires a valid bearer token but not a completed second
// factor. The 2FA endpoints themselves sit behind it.
func Authenticate(parser SubjectParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subj, ok := subjectFromRequest(parser, r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subj)))
		})
	}
}

func subjectFromRequest(parser SubjectParser, r *http.Request) (session.Subject, bool) {
	if parser == nil {
		return session.Subject{}, false
	}
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return session.Subject{}, false
	}
	subj, err := parser.ParseSubject(token)
	if err != nil {
		return session.Subject{}, false
	}
	return subj, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
