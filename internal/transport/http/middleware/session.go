package middleware

import (
	"context"
	"net/http"

	"github.com/civitas-platform/identity-service/internal/application/identity"
	"github.com/civitas-platform/identity-service/internal/domain"
	"github.com/civitas-platform/identity-service/internal/infrastructure/security"
)

type SessionReader interface {
	Get(ctx context.Context, sid string) (identity.Session, error)
}

// SessionAuth resolves the sid cookie against the session store and
// injects the caller into request context.
func SessionAuth(sessions SessionReader, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, err := security.ReadSessionCookie(r)
			if err != nil || sid == "" {
				writeErr(w, r, domain.ErrSessionMissing())
				return
			}

			sess, err := sessions.Get(r.Context(), sid)
			if err != nil {
				writeErr(w, r, err)
				return
			}

			ctx := WithPrincipal(r.Context(), Principal{
				UserID:    sess.UserID,
				Email:     sess.Email,
				Role:      sess.Role,
				FirstName: sess.FirstName,
				LastName:  sess.LastName,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
