package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/civitas-platform/identity-service/internal/audit"
	"github.com/civitas-platform/identity-service/internal/domain"
)

// Service is the only component that writes both stores: the relational
// record and the directory entry.
type Service struct {
	users    UserRepo
	dir      Directory
	signer   TokenSigner
	sessions SessionStore
	notifs   NotificationStore
	pub      EventPublisher
	audit    *audit.Logger
	log      zerolog.Logger

	accessTTL  time.Duration
	sessionTTL time.Duration
	resetTTL   time.Duration

	// Base URL for reset links; service appends the token.
	passwordResetBaseURL string

	now func() time.Time
}

type Config struct {
	AccessTTL            time.Duration
	SessionTTL           time.Duration
	PasswordResetTTL     time.Duration
	PasswordResetBaseURL string
}

func NewService(
	users UserRepo,
	dir Directory,
	signer TokenSigner,
	sessions SessionStore,
	notifs NotificationStore,
	pub EventPublisher,
	auditLog *audit.Logger,
	log zerolog.Logger,
	cfg Config,
) *Service {
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = accessTTL
	}
	resetTTL := cfg.PasswordResetTTL
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	return &Service{
		users:    users,
		dir:      dir,
		signer:   signer,
		sessions: sessions,
		notifs:   notifs,
		pub:      pub,
		audit:    auditLog,
		log:      log.With().Str("component", "identity").Logger(),

		accessTTL:  accessTTL,
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,

		passwordResetBaseURL: cfg.PasswordResetBaseURL,

		now: time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Identity is the merged relational + directory view of one user.
type Identity struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	RoleID      int
	Role        string
	AvatarRef   string
	DirectoryDN string
}

func identityFromUser(u domain.User) Identity {
	return Identity{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		RoleID:    u.RoleID,
		Role:      u.Role(),
		AvatarRef: u.AvatarRef,
	}
}

func (s *Service) claimsFor(id Identity) TokenClaims {
	return TokenClaims{
		UserID:    id.ID,
		Email:     id.Email,
		FirstName: id.FirstName,
		LastName:  id.LastName,
		RoleID:    id.RoleID,
		Role:      id.Role,
		AvatarRef: id.AvatarRef,
	}
}

// newOpaqueToken returns a URL-safe opaque token.
func newOpaqueToken(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		return "", errors.New("invalid token length")
	}
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// detach runs fn on its own goroutine with a fresh timeout. Used for
// fire-and-forget mail events scheduled after the response; failures are
// logged, never surfaced, never retried.
func (s *Service) detach(what string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.log.Warn().Err(err).Str("event", what).Msg("detached publish failed")
		}
	}()
}

// GetUserByID exposes the relational record for callers that refresh
// session-cached fields.
func (s *Service) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return s.users.GetByID(ctx, id)
}
