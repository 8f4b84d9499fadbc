package identity

import (
	"context"
)

type LoginResult struct {
	Identity  Identity
	Token     string
	SessionID string
	ExpiresIn int64 // seconds
}

// Login authenticates and establishes both client surfaces at once: a fixed
// TTL bearer token for API clients and a server-side session for the admin
// surface. The sign-in mail is scheduled after the fact and its failure is
// logged only.
func (s *Service) Login(ctx context.Context, email, password, ip string) (LoginResult, error) {
	id, err := s.Authenticate(ctx, email, password)
	if err != nil {
		s.audit.LoginFailed(ctx, email, ip, errReason(err))
		return LoginResult{}, err
	}

	token, err := s.signer.SignAccessToken(s.claimsFor(id), s.accessTTL)
	if err != nil {
		return LoginResult{}, err
	}

	sid, err := s.sessions.Create(ctx, Session{
		UserID:    id.ID,
		Email:     id.Email,
		Role:      id.Role,
		FirstName: id.FirstName,
		LastName:  id.LastName,
	}, s.sessionTTL)
	if err != nil {
		return LoginResult{}, err
	}

	s.audit.LoginSuccess(ctx, id.ID, id.Email, ip)

	if err := s.notifs.Create(ctx, id.ID, "signin", "New sign-in to your account"); err != nil {
		s.log.Warn().Err(err).Str("user_id", id.ID).Msg("signin notification insert failed")
	}

	s.detach("signin_notice", func(ctx context.Context) error {
		return s.pub.PublishSignInNotice(ctx, SignInEvent{
			UserID:    id.ID,
			Email:     id.Email,
			FirstName: id.FirstName,
		})
	})

	return LoginResult{
		Identity:  id,
		Token:     token,
		SessionID: sid,
		ExpiresIn: int64(s.accessTTL.Seconds()),
	}, nil
}

func errReason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
