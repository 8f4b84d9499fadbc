package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/civitas-platform/identity-service/internal/domain"
)

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	RoleID    int
	AvatarRef string
}

// Register creates the relational row first, then the directory entry with
// uid=email. There is no cross-store transaction: when the directory step
// fails the row persists and the directory error propagates. The directory
// create is idempotent, so retrying the whole registration is safe.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Identity, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" {
		return Identity{}, domain.ErrMissingField("email")
	}
	if in.Password == "" {
		return Identity{}, domain.ErrMissingField("password")
	}

	role := domain.RoleFromID(in.RoleID)

	created, err := s.users.Create(ctx, domain.User{
		ID:        uuid.NewString(),
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		RoleID:    domain.RoleID(role),
		AvatarRef: in.AvatarRef,
	})
	if err != nil {
		return Identity{}, err
	}

	dn, err := s.dir.CreateUser(ctx, DirectoryUser{
		UID:       in.Email,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  in.Password,
		Role:      role,
	})
	if err != nil {
		// The row stays behind; an operator (or a retry of this call) can
		// finish the directory side later.
		s.log.Warn().Err(err).
			Str("user_id", created.ID).
			Str("email", created.Email).
			Msg("directory create failed after relational commit")
		return Identity{}, err
	}

	s.audit.UserRegistered(ctx, created.ID, created.Email, role)

	id := identityFromUser(created)
	id.DirectoryDN = dn
	return id, nil
}
