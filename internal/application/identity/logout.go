package identity

import (
	"context"

	"github.com/civitas-platform/identity-service/internal/domain"
)

// Logout destroys the session referenced by sid. A missing or unknown sid
// is a no-op success; a session-store outage is not, since the session
// would silently survive. The audit entry is written only when a live
// session was actually destroyed.
func (s *Service) Logout(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}

	sess, err := s.sessions.Get(ctx, sid)
	if err != nil {
		if domain.Is(err, "session_missing") {
			// Unknown session: nothing to destroy, still success.
			return nil
		}
		return err
	}

	if err := s.sessions.Destroy(ctx, sid); err != nil {
		return err
	}

	s.audit.Logout(ctx, sess.UserID)
	return nil
}
