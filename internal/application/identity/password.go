package identity

import (
	"context"
	"strings"

	"github.com/civitas-platform/identity-service/internal/domain"
)

// PasswordForgot installs a fresh opaque reset token with an absolute
// expiry and sends the reset link synchronously: a mail failure here is
// surfaced to the caller, unlike the confirmation mails.
func (s *Service) PasswordForgot(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.ErrMissingField("email")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := newOpaqueToken(32)
	if err != nil {
		return domain.ErrRandomFailed(err)
	}

	expires := s.now().Add(s.resetTTL)
	if err := s.users.SetResetToken(ctx, u.ID, token, expires); err != nil {
		return err
	}

	s.audit.PasswordResetRequested(ctx, u.Email)

	return s.pub.PublishPasswordReset(ctx, PasswordResetEvent{
		UserID: u.ID,
		Email:  u.Email,
		URL:    s.passwordResetBaseURL + token,
	})
}

// PasswordReset redeems a token: equality and a strictly-future expiry are
// checked and cleared in one statement, then the directory credential is
// replaced. The relational side never stores the password.
func (s *Service) PasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return domain.ErrMissingField("token")
	}
	if newPassword == "" {
		return domain.ErrMissingField("new_password")
	}

	u, err := s.users.ConsumeResetToken(ctx, token, s.now())
	if err != nil {
		return err
	}

	if err := s.dir.SetPasswordByEmail(ctx, u.Email, newPassword); err != nil {
		return err
	}

	s.audit.PasswordReset(ctx, u.ID)

	s.detach("password_changed", func(ctx context.Context) error {
		return s.pub.PublishPasswordChanged(ctx, PasswordChangedEvent{UserID: u.ID, Email: u.Email})
	})
	return nil
}

// PasswordChange re-verifies the current password with a directory bind
// before replacing the credential.
func (s *Service) PasswordChange(ctx context.Context, userID, currentPassword, newPassword string) error {
	if userID == "" {
		return domain.ErrTokenMissing()
	}
	if currentPassword == "" || newPassword == "" {
		return domain.ErrInvalidField("password", "empty")
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.dir.AuthenticateByEmail(ctx, u.Email, currentPassword); err != nil {
		// A credential reject stays a reject; a directory outage keeps
		// its infrastructure kind so the caller sees 503, not 401.
		if domain.Is(err, "invalid_credentials") || domain.Is(err, "user_not_found") {
			return domain.ErrInvalidCredentials()
		}
		return err
	}

	if err := s.dir.SetPasswordByEmail(ctx, u.Email, newPassword); err != nil {
		return err
	}

	s.audit.PasswordChanged(ctx, u.ID)

	s.detach("password_changed", func(ctx context.Context) error {
		return s.pub.PublishPasswordChanged(ctx, PasswordChangedEvent{UserID: u.ID, Email: u.Email})
	})
	return nil
}
