package middleware

import (
	"context"
	"net/http"
	"strings"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
)

// AccountResolver is the part of *usersvc.Engine the guards depend on.
type AccountResolver interface {
	ResolveCurrentAccount(ctx context.Context, accessToken string) (usersvc.Account, error)
}

type accountContextKey struct{}

// AccountFromContext returns the account stored by a guard.
func AccountFromContext(ctx context.Context) (usersvc.Account, bool) {
	acct, ok := ctx.Value(accountContextKey{}).(usersvc.Account)
	return acct, ok
}

// WithAccount returns a copy of ctx carrying acct.
func WithAccount(ctx context.Context, acct usersvc.Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, acct)
}

// Guard requires a bearer access token that resolves to an active account.
func Guard(resolver AccountResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			acct, err := resolver.ResolveCurrentAccount(r.Context(), token)
			if err != nil {
				reject(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acct)))
		})
	}
}

// Optional resolves the bearer token when the Authorization header is set.
// Requests without the header reach next with no account in context; a
// header that does not resolve is rejected as in Guard.
func Optional(resolver AccountResolver) func(http.Handler) http.Handler {
	guard := Guard(resolver)
	return func(next http.Handler) http.Handler {
		guarded := guard(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			guarded.ServeHTTP(w, r)
		})
	}
}

// StatusFor maps a resolve error to its HTTP status code.
func StatusFor(err error) int {
	switch usersvc.Classify(err) {
	case usersvc.KindForbidden:
		return http.StatusForbidden
	case usersvc.KindTokenFailure, usersvc.KindAuthFailure:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func reject(w http.ResponseWriter, err error) {
	switch status := StatusFor(err); status {
	case http.StatusUnauthorized:
		unauthorized(w)
	case http.StatusForbidden:
		http.Error(w, "forbidden", status)
	default:
		http.Error(w, "internal error", status)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
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
