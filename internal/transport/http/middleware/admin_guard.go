package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/civitas-platform/identity-service/internal/domain"
	"github.com/civitas-platform/identity-service/internal/infrastructure/security"
)

type UserReader interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
}

// AdminGuard protects the browser-facing admin surface. It answers in
// HTML, not JSON: an unauthenticated visitor is redirected to the
// landing page, an authenticated non-admin gets a forbidden page.
type AdminGuard struct {
	sessions   SessionReader
	users      UserReader
	landingURL string
	log        zerolog.Logger
}

func NewAdminGuard(sessions SessionReader, users UserReader, landingURL string, log zerolog.Logger) *AdminGuard {
	if landingURL == "" {
		landingURL = "/"
	}
	return &AdminGuard{
		sessions:   sessions,
		users:      users,
		landingURL: landingURL,
		log:        log.With().Str("component", "admin_guard").Logger(),
	}
}

func (g *AdminGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, err := security.ReadSessionCookie(r)
		if err != nil || sid == "" {
			http.Redirect(w, r, g.landingURL, http.StatusFound)
			return
		}

		sess, err := g.sessions.Get(r.Context(), sid)
		if err != nil {
			http.Redirect(w, r, g.landingURL, http.StatusFound)
			return
		}

		if sess.Role != string(domain.RoleAdmin) {
			writeForbiddenHTML(w)
			return
		}

		p := Principal{
			UserID:    sess.UserID,
			Email:     sess.Email,
			Role:      sess.Role,
			FirstName: sess.FirstName,
			LastName:  sess.LastName,
		}

		// Names can go stale in the session; prefer the relational record
		// and fall back to the cached values when the store is unreachable.
		if g.users != nil {
			if u, err := g.users.GetByID(r.Context(), sess.UserID); err == nil {
				p.FirstName = u.FirstName
				p.LastName = u.LastName
				p.Email = u.Email
			} else {
				g.log.Warn().Err(err).Str("user_id", sess.UserID).Msg("profile refresh failed; using session values")
			}
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func writeForbiddenHTML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Forbidden</title></head>
<body>
<h1>403 Forbidden</h1>
<p>Your account does not have access to this area.</p>
</body>
</html>
`))
}
