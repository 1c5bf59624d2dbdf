package auth

import (
	"context"
	"net/http"

	"resumepersona/backend/handlers/response"
	"resumepersona/backend/services/session"
)

type Resumer interface {
	Resume(ctx context.Context, token string) (*session.Session, error)
}

// Middleware checks the bearer token against the session ledger and puts the
// session in the request context.
func Middleware(sessions Resumer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			token := TokenFromRequest(r)
			if token == "" {
				response.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			s, err := sessions.Resume(r.Context(), token)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithContext(r.Context(), s)))
		})
	}
}
