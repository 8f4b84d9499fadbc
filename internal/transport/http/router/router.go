package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type IdentityHandler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)
	SessionMe(w http.ResponseWriter, r *http.Request)

	PasswordForgot(w http.ResponseWriter, r *http.Request)
	PasswordReset(w http.ResponseWriter, r *http.Request)
	PasswordChange(w http.ResponseWriter, r *http.Request)
}

type AdminHandler interface {
	Home(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	RequestIDMW func(http.Handler) http.Handler

	Health   HealthHandler
	Identity IdentityHandler
	Admin    AdminHandler

	BearerMW  func(http.Handler) http.Handler
	SessionMW func(http.Handler) http.Handler
	// AdminGuardMW protects the browser surface; it answers with
	// redirects and HTML, never JSON.
	AdminGuardMW func(http.Handler) http.Handler

	RLLogin  func(http.Handler) http.Handler
	RLForgot func(http.Handler) http.Handler

	// Realtime gates; either may be nil when sockets are disabled.
	WSPublic  http.Handler
	WSPrivate http.Handler
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Identity == nil {
		return nil, fmt.Errorf("nil Identity handler")
	}
	if deps.BearerMW == nil {
		return nil, fmt.Errorf("nil Bearer middleware")
	}

	r := chi.NewRouter()
	if deps.RequestIDMW != nil {
		r.Use(deps.RequestIDMW)
	}

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)

	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/register", deps.Identity.Register)
		r.With(maybe(deps.RLLogin)).Post("/login", deps.Identity.Login)
		r.Post("/logout", deps.Identity.Logout)
		r.With(deps.BearerMW).Get("/me", deps.Identity.Me)
		if deps.SessionMW != nil {
			r.With(deps.SessionMW).Get("/session", deps.Identity.SessionMe)
		}

		r.With(maybe(deps.RLForgot)).Post("/password/forgot", deps.Identity.PasswordForgot)
		r.Post("/password/reset", deps.Identity.PasswordReset)
		r.With(deps.BearerMW).Post("/password/change", deps.Identity.PasswordChange)
	})

	if deps.Admin != nil && deps.AdminGuardMW != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(deps.AdminGuardMW)
			r.Get("/", deps.Admin.Home)
		})
	}

	if deps.WSPublic != nil {
		r.Handle("/ws/public", deps.WSPublic)
	}
	if deps.WSPrivate != nil {
		r.Handle("/ws/private", deps.WSPrivate)
	}

	return r, nil
}

// maybe turns a nil middleware into a pass-through so chi's With never
// sees a nil entry.
func maybe(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw != nil {
		return mw
	}
	return func(next http.Handler) http.Handler { return next }
}
