package identity

import (
	"context"
	"time"

	"github.com/civitas-platform/identity-service/internal/domain"
)

/*
UserRepo
--------
Persistence port for the relational user record. Only describes WHAT the
identity flows need, not HOW it's stored.
*/
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	Create(ctx context.Context, u domain.User) (domain.User, error)

	// SetResetToken installs the single live reset token for a user,
	// replacing any previous one.
	SetResetToken(ctx context.Context, userID, token string, expires time.Time) error

	// ConsumeResetToken atomically matches token equality AND an expiry
	// strictly after now, clears both fields, and returns the owning user.
	// No match means reset_token_invalid.
	ConsumeResetToken(ctx context.Context, token string, now time.Time) (domain.User, error)
}

/*
Directory
---------
The canonical credential store. Implemented by the LDAP directory client;
every operation opens and releases its own connection.
*/
type DirectoryUser struct {
	UID       string // equals email
	Email     string
	FirstName string
	LastName  string
	Password  string
	Role      string
}

type Directory interface {
	// CreateUser is idempotent: entry-exists and already-a-member are
	// success, so the whole call can be retried after partial failure.
	CreateUser(ctx context.Context, u DirectoryUser) (dn string, err error)

	// AuthenticateByEmail must not reveal whether the failure was a missing
	// entry or a rejected bind.
	AuthenticateByEmail(ctx context.Context, login, password string) error

	SetPasswordByEmail(ctx context.Context, login, newPassword string) error
}

/*
TokenSigner
-----------
Issues and verifies bearer tokens. Used by the flows, the HTTP middleware
and the socket gate.
*/
type TokenClaims struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
	RoleID    int
	Role      string
	AvatarRef string
	Exp       time.Time
}

type TokenSigner interface {
	SignAccessToken(claims TokenClaims, ttl time.Duration) (string, error)
	VerifyAccessToken(token string) (TokenClaims, error)
}

/*
SessionStore
------------
Server-held session state for the admin surface, keyed by an opaque id.
Backed by Redis.
*/
type Session struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type SessionStore interface {
	Create(ctx context.Context, s Session, ttl time.Duration) (sid string, err error)
	Get(ctx context.Context, sid string) (Session, error)
	Destroy(ctx context.Context, sid string) error
}

/*
NotificationStore
-----------------
In-app notifications created by identity events (sign-in notices).
*/
type NotificationStore interface {
	Create(ctx context.Context, userID, kind, body string) error
}

/*
EventPublisher
--------------
Publishes mail events to RabbitMQ; the mail service consumes them. This
service never sends email directly.
*/
type SignInEvent struct {
	UserID    string
	Email     string
	FirstName string
}

type PasswordResetEvent struct {
	UserID string
	Email  string
	URL    string
}

type PasswordChangedEvent struct {
	UserID string
	Email  string
}

type EventPublisher interface {
	PublishSignInNotice(ctx context.Context, evt SignInEvent) error
	PublishPasswordReset(ctx context.Context, evt PasswordResetEvent) error
	PublishPasswordChanged(ctx context.Context, evt PasswordChangedEvent) error
}
