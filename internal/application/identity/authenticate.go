package identity

import (
	"context"
	"strings"

	"github.com/civitas-platform/identity-service/internal/domain"
)

// Authenticate reconciles both stores into one identity: the relational
// record supplies the profile and role, the directory verifies the
// credential. A missing relational record is user_not_found; the directory
// layer itself never distinguishes a missing entry from a wrong password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Identity{}, domain.ErrInvalidCredentials()
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return Identity{}, err
	}

	if err := s.dir.AuthenticateByEmail(ctx, email, password); err != nil {
		return Identity{}, err
	}

	return identityFromUser(u), nil
}
