package middleware

import (
	"net/http"
	"strings"

	"github.com/civitas-platform/identity-service/internal/application/identity"
	"github.com/civitas-platform/identity-service/internal/domain"
)

type TokenVerifier interface {
	VerifyAccessToken(token string) (identity.TokenClaims, error)
}

type WriteErrFunc func(http.ResponseWriter, *http.Request, error)

// BearerAuth verifies Authorization: Bearer <access_token> and injects the
// caller into request context. An absent header and a bad token are
// distinct failures: the first is a refusal to answer, the second a
// rejected credential.
func BearerAuth(verifier TokenVerifier, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" {
				writeErr(w, r, domain.ErrTokenMissing())
				return
			}

			parts := strings.SplitN(h, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeErr(w, r, domain.ErrTokenInvalid())
				return
			}

			raw := strings.TrimSpace(parts[1])
			if raw == "" {
				writeErr(w, r, domain.ErrTokenInvalid())
				return
			}

			claims, err := verifier.VerifyAccessToken(raw)
			if err != nil {
				writeErr(w, r, err)
				return
			}

			if strings.TrimSpace(claims.UserID) == "" {
				writeErr(w, r, domain.ErrTokenInvalid())
				return
			}

			ctx := WithPrincipal(r.Context(), Principal{
				UserID:    claims.UserID,
				Email:     claims.Email,
				Role:      claims.Role,
				FirstName: claims.FirstName,
				LastName:  claims.LastName,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
