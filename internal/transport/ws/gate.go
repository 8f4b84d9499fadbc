package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"

	"github.com/civitas-platform/identity-service/internal/application/identity"
	"github.com/civitas-platform/identity-service/internal/domain"
	"github.com/civitas-platform/identity-service/internal/transport/http/response"
)

// Policy decides what happens to a handshake that carries no valid
// identity: a strict namespace refuses it, a permissive one admits the
// caller as anonymous.
type Policy struct {
	RequireAuth bool
}

type TokenVerifier interface {
	VerifyAccessToken(token string) (identity.TokenClaims, error)
}

// UserReader re-reads the relational record on every private-room send.
// The freshness is the point: a demoted admin loses access on the next
// message, not the next connection.
type UserReader interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
}

type gateIdentity struct {
	userID string
	role   string
}

func (g gateIdentity) anonymous() bool { return g.userID == "" }

type gateCtxKey struct{}

// Gate terminates websocket handshakes for one namespace. Identity is
// decided here, in plain HTTP, before the upgrade completes; the socket
// loop only ever sees the result.
type Gate struct {
	verifier TokenVerifier
	users    UserReader
	policy   Policy
	hub      *roomHub
	log      zerolog.Logger
}

func NewGate(verifier TokenVerifier, users UserReader, policy Policy, log zerolog.Logger) *Gate {
	return &Gate{
		verifier: verifier,
		users:    users,
		policy:   policy,
		hub:      newRoomHub(),
		log:      log.With().Str("component", "ws_gate").Logger(),
	}
}

func (g *Gate) Handler() http.Handler {
	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		g.handleConn(conn)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id, err := g.identify(r)
		if err != nil {
			if g.policy.RequireAuth {
				response.WriteError(w, r, err)
				return
			}
			id = gateIdentity{} // anonymous
		}

		ctx := context.WithValue(r.Context(), gateCtxKey{}, id)
		wsHandler.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identify resolves the ?token= query parameter. A missing token and a
// rejected one are reported as distinct errors so the strict policy can
// answer 403 vs 401 the same way the HTTP middleware does.
func (g *Gate) identify(r *http.Request) (gateIdentity, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("token"))
	if raw == "" {
		return gateIdentity{}, domain.ErrTokenMissing()
	}

	claims, err := g.verifier.VerifyAccessToken(raw)
	if err != nil {
		g.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("handshake token rejected")
		return gateIdentity{}, err
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return gateIdentity{}, domain.ErrTokenInvalid()
	}

	return gateIdentity{userID: claims.UserID, role: claims.Role}, nil
}
