package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/civitas-platform/identity-service/internal/application/identity"
	"github.com/civitas-platform/identity-service/internal/domain"
	"github.com/civitas-platform/identity-service/internal/infrastructure/redis"
	"github.com/civitas-platform/identity-service/internal/infrastructure/security"
	"github.com/civitas-platform/identity-service/internal/transport/http/response"
)

type fakeVerifier struct {
	claims identity.TokenClaims
	err    error
}

func (f *fakeVerifier) VerifyAccessToken(token string) (identity.TokenClaims, error) {
	if f.err != nil {
		return identity.TokenClaims{}, f.err
	}
	return f.claims, nil
}

type fakeSessionReader struct {
	sessions map[string]identity.Session
}

func (f *fakeSessionReader) Get(ctx context.Context, sid string) (identity.Session, error) {
	s, ok := f.sessions[sid]
	if !ok {
		return identity.Session{}, domain.ErrSessionMissing()
	}
	return s, nil
}

type fakeUserReader struct {
	users map[string]domain.User
	err   error
}

func (f *fakeUserReader) GetByID(ctx context.Context, id string) (domain.User, error) {
	if f.err != nil {
		return domain.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

// echoPrincipal answers with the Principal the middleware injected.
func echoPrincipal() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "no principal", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(p)
	})
}

func errCodeFromBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body response.ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestBearerAuth(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{claims: identity.TokenClaims{
		UserID: "u1", Email: "ada@example.org", Role: "admin", FirstName: "Ada", LastName: "Lovelace",
	}}
	h := BearerAuth(verifier, response.WriteError)(echoPrincipal())

	t.Run("no header is forbidden", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		if code := errCodeFromBody(t, rec); code != "token_missing" {
			t.Fatalf("code = %q", code)
		}
	})

	t.Run("malformed header is unauthorized", func(t *testing.T) {
		t.Parallel()
		for _, hv := range []string{"Bearer", "Token abc", "Bearer   "} {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", hv)
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("header %q: status = %d, want 401", hv, rec.Code)
			}
		}
	})

	t.Run("valid token injects principal", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		var p Principal
		if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
			t.Fatal(err)
		}
		if p.UserID != "u1" || p.Role != "admin" {
			t.Fatalf("principal = %+v", p)
		}
	})

	t.Run("bearer keyword is case-insensitive", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "bearer sometoken")
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestBearerAuth_VerifierReject(t *testing.T) {
	t.Parallel()
	h := BearerAuth(&fakeVerifier{err: domain.ErrTokenInvalid()}, response.WriteError)(echoPrincipal())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer expired")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := errCodeFromBody(t, rec); code != "token_invalid" {
		t.Fatalf("code = %q", code)
	}
}

func TestBearerAuth_EmptyUserIDClaim(t *testing.T) {
	t.Parallel()
	h := BearerAuth(&fakeVerifier{claims: identity.TokenClaims{Email: "x@y.z"}}, response.WriteError)(echoPrincipal())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSessionAuth(t *testing.T) {
	t.Parallel()
	sessions := &fakeSessionReader{sessions: map[string]identity.Session{
		"sid-1": {UserID: "u1", Email: "ada@example.org", Role: "user"},
	}}
	h := SessionAuth(sessions, response.WriteError)(echoPrincipal())

	t.Run("no cookie", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		if code := errCodeFromBody(t, rec); code != "session_missing" {
			t.Fatalf("code = %q", code)
		}
	})

	t.Run("unknown sid", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/session", nil)
		req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: "sid-ghost"})
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("valid sid injects principal", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/session", nil)
		req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: "sid-1"})
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var p Principal
		if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
			t.Fatal(err)
		}
		if p.UserID != "u1" {
			t.Fatalf("principal = %+v", p)
		}
	})
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = response.RequestIDFromContext(r)
	}))

	t.Run("caller value is propagated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(HeaderXRequestID, "req-42")
		h.ServeHTTP(rec, req)
		if seen != "req-42" {
			t.Fatalf("context request id = %q", seen)
		}
		if got := rec.Header().Get(HeaderXRequestID); got != "req-42" {
			t.Fatalf("header = %q", got)
		}
	})

	t.Run("generated when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		if seen == "" || rec.Header().Get(HeaderXRequestID) != seen {
			t.Fatalf("generated id missing: context=%q header=%q", seen, rec.Header().Get(HeaderXRequestID))
		}
	})
}

type scriptedLimiter struct {
	dec  redis.Decision
	err  error
	keys []string
}

func (s *scriptedLimiter) AllowFixedWindow(ctx context.Context, key string, limit int, window time.Duration) (redis.Decision, error) {
	s.keys = append(s.keys, key)
	return s.dec, s.err
}

func TestRateLimitFixedWindow(t *testing.T) {
	t.Parallel()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("allowed passes through", func(t *testing.T) {
		t.Parallel()
		l := &scriptedLimiter{dec: redis.Decision{Allowed: true, Limit: 5, Remaining: 4}}
		h := RateLimitFixedWindow(l, FixedWindowConfig{RouteKey: "login", Limit: 5, Window: time.Minute}, response.WriteError)(ok)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if len(l.keys) != 1 || !strings.HasPrefix(l.keys[0], "rl:login:ip:203.0.113.9:") {
			t.Fatalf("key = %v", l.keys)
		}
	})

	t.Run("denied returns 429 with Retry-After", func(t *testing.T) {
		t.Parallel()
		l := &scriptedLimiter{dec: redis.Decision{Allowed: false, Limit: 5, RetryAfter: 30 * time.Second}}
		h := RateLimitFixedWindow(l, FixedWindowConfig{RouteKey: "login", Limit: 5, Window: time.Minute}, response.WriteError)(ok)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d", rec.Code)
		}
		if ra := rec.Header().Get("Retry-After"); ra != "30" {
			t.Fatalf("Retry-After = %q", ra)
		}
		if code := errCodeFromBody(t, rec); code != "rate_limited" {
			t.Fatalf("code = %q", code)
		}
	})

	t.Run("limiter error fails open", func(t *testing.T) {
		t.Parallel()
		l := &scriptedLimiter{err: errors.New("redis down")}
		h := RateLimitFixedWindow(l, FixedWindowConfig{RouteKey: "login", Limit: 5, Window: time.Minute}, response.WriteError)(ok)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want pass-through on limiter failure", rec.Code)
		}
	})

	t.Run("nil limiter is disabled", func(t *testing.T) {
		t.Parallel()
		h := RateLimitFixedWindow(nil, FixedWindowConfig{RouteKey: "login", Limit: 1}, response.WriteError)(ok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("authenticated caller is keyed by user id", func(t *testing.T) {
		t.Parallel()
		l := &scriptedLimiter{dec: redis.Decision{Allowed: true}}
		h := RateLimitFixedWindow(l, FixedWindowConfig{RouteKey: "forgot", Limit: 3, Window: time.Minute}, response.WriteError)(ok)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/forgot", nil)
		req = req.WithContext(WithPrincipal(req.Context(), Principal{UserID: "u1"}))
		h.ServeHTTP(rec, req)
		if len(l.keys) != 1 || !strings.HasPrefix(l.keys[0], "rl:forgot:u:u1:") {
			t.Fatalf("key = %v", l.keys)
		}
	})
}

func TestAdminGuard(t *testing.T) {
	t.Parallel()
	sessions := &fakeSessionReader{sessions: map[string]identity.Session{
		"sid-admin": {UserID: "a1", Email: "root@example.org", Role: "admin", FirstName: "Old", LastName: "Name"},
		"sid-user":  {UserID: "u1", Email: "ada@example.org", Role: "user"},
	}}
	users := &fakeUserReader{users: map[string]domain.User{
		"a1": {ID: "a1", Email: "root@town.example.org", FirstName: "Grace", LastName: "Hopper", RoleID: domain.RoleIDAdmin},
	}}
	guard := NewAdminGuard(sessions, users, "https://town.example.org/", zerolog.Nop())
	h := guard.Middleware(echoPrincipal())

	t.Run("no cookie redirects to landing page", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/", nil))
		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "https://town.example.org/" {
			t.Fatalf("Location = %q", loc)
		}
	})

	t.Run("unknown session redirects", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
		req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: "sid-ghost"})
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rec.Code)
		}
	})

	t.Run("non-admin gets an HTML forbidden page", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
		req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: "sid-user"})
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Fatalf("content type = %q", ct)
		}
	})

	t.Run("admin passes with refreshed profile", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
		req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: "sid-admin"})
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var p Principal
		if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
			t.Fatal(err)
		}
		if p.FirstName != "Grace" || p.LastName != "Hopper" || p.Email != "root@town.example.org" {
			t.Fatalf("profile not refreshed: %+v", p)
		}
	})
}

func TestAdminGuard_ProfileRefreshFailureFallsBack(t *testing.T) {
	t.Parallel()
	sessions := &fakeSessionReader{sessions: map[string]identity.Session{
		"sid-admin": {UserID: "a1", Email: "root@example.org", Role: "admin", FirstName: "Cached", LastName: "Values"},
	}}
	users := &fakeUserReader{err: domain.ErrDBUnavailable(errors.New("down"))}
	guard := NewAdminGuard(sessions, users, "/", zerolog.Nop())
	h := guard.Middleware(echoPrincipal())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
	req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: "sid-admin"})
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var p Principal
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.FirstName != "Cached" || p.LastName != "Values" {
		t.Fatalf("expected session fallback, got %+v", p)
	}
}
