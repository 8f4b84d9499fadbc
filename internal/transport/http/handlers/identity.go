package http_handlers

import (
	"net/http"
	"time"

	"github.com/civitas-platform/identity-service/internal/application/identity"
	"github.com/civitas-platform/identity-service/internal/domain"
	"github.com/civitas-platform/identity-service/internal/infrastructure/security"
	"github.com/civitas-platform/identity-service/internal/logger"
	"github.com/civitas-platform/identity-service/internal/transport/http/dto"
	"github.com/civitas-platform/identity-service/internal/transport/http/middleware"
	"github.com/civitas-platform/identity-service/internal/transport/http/response"
)

type IdentityHandler struct {
	svc           *identity.Service
	sessionTTL    time.Duration
	secureCookies bool
}

func NewIdentityHandler(svc *identity.Service, sessionTTL time.Duration, secureCookies bool) *IdentityHandler {
	return &IdentityHandler{
		svc:           svc,
		sessionTTL:    sessionTTL,
		secureCookies: secureCookies,
	}
}

func (h *IdentityHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	id, err := h.svc.Register(r.Context(), identity.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		RoleID:    domain.RoleID(req.Role),
	})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	log := logger.WithCtx(r.Context())
	log.Info().
		Str("user_id", id.ID).
		Str("email", id.Email).
		Msg("user_registered")

	response.Created(w, dto.RegisterData{User: userView(id)})
}

// Login accepts credentials either as Basic auth or as a JSON body, but
// not both and not neither.
func (h *IdentityHandler) Login(w http.ResponseWriter, r *http.Request) {
	email, password, err := readCredentials(r)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), email, password, clientIP(r))
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	log := logger.WithCtx(r.Context())
	log.Info().
		Str("user_id", res.Identity.ID).
		Msg("user_logged_in")

	security.SetSessionCookie(w, res.SessionID, h.sessionTTL, h.secureCookies)

	response.OK(w, dto.LoginData{
		Message:   "login successful",
		User:      userView(res.Identity),
		Token:     res.Token,
		ExpiresIn: res.ExpiresIn,
	})
}

func (h *IdentityHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sid, err := security.ReadSessionCookie(r); err == nil && sid != "" {
		// A store outage keeps the cookie: clearing it would tell the
		// client the session is revoked while it still lives in Redis.
		if err := h.svc.Logout(r.Context(), sid); err != nil {
			response.WriteError(w, r, err)
			return
		}
	}

	security.ClearSessionCookie(w, h.secureCookies)
	response.OK(w, dto.StatusData{Status: "ok"})
}

func (h *IdentityHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	u, err := h.svc.GetUserByID(r.Context(), p.UserID)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.MeData{User: dto.UserView{
		ID:        u.ID,
		FirstName: u.FirstName,
		Email:     u.Email,
		Role:      u.Role(),
	}})
}

// SessionMe answers from the server-side session rather than a bearer
// token; the admin frontend polls it to keep its signed-in state.
func (h *IdentityHandler) SessionMe(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrSessionMissing())
		return
	}

	response.OK(w, dto.MeData{User: dto.UserView{
		ID:        p.UserID,
		FirstName: p.FirstName,
		Email:     p.Email,
		Role:      p.Role,
	}})
}

func (h *IdentityHandler) PasswordForgot(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordForgotRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.PasswordForgot(r.Context(), req.Email); err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.StatusData{Status: "ok"})
}

func (h *IdentityHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.PasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.StatusData{Status: "ok"})
}

func (h *IdentityHandler) PasswordChange(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	var req dto.PasswordChangeRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.PasswordChange(r.Context(), p.UserID, req.OldPassword, req.NewPassword); err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.StatusData{Status: "ok"})
}

// ---------- helpers ----------

func userView(id identity.Identity) dto.UserView {
	return dto.UserView{
		ID:        id.ID,
		FirstName: id.FirstName,
		Email:     id.Email,
		Role:      id.Role,
	}
}

// readCredentials enforces the exactly-one-source rule: Basic auth XOR a
// JSON body. Supplying both or neither is a 400, before any lookup.
func readCredentials(r *http.Request) (email, password string, err error) {
	basicUser, basicPass, hasBasic := r.BasicAuth()

	var body dto.LoginRequest
	hasBody := false
	if r.Body != nil && r.ContentLength != 0 {
		if derr := response.DecodeJSON(r, &body); derr != nil {
			return "", "", derr
		}
		hasBody = !body.Empty()
	}

	switch {
	case hasBasic && hasBody:
		return "", "", domain.ErrMissingCredentials()
	case hasBasic:
		email, password = basicUser, basicPass
	case hasBody:
		if verr := body.Validate(); verr != nil {
			return "", "", verr
		}
		email, password = body.Email, body.Password
	default:
		return "", "", domain.ErrMissingCredentials()
	}
	return email, password, nil
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.RemoteAddr
}
