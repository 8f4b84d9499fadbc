package memory

import (
	"context"
	"log"

	"github.com/civitas-platform/identity-service/internal/application/identity"
)

// NoopPublisher logs events instead of delivering them. Used in dev
// when no broker is reachable.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (p *NoopPublisher) PublishSignInNotice(ctx context.Context, evt identity.SignInEvent) error {
	log.Printf("[noop-pub] sign-in: user_id=%s email=%s", evt.UserID, evt.Email)
	return nil
}

func (p *NoopPublisher) PublishPasswordReset(ctx context.Context, evt identity.PasswordResetEvent) error {
	log.Printf("[noop-pub] password reset: user_id=%s email=%s url=%s", evt.UserID, evt.Email, evt.URL)
	return nil
}

func (p *NoopPublisher) PublishPasswordChanged(ctx context.Context, evt identity.PasswordChangedEvent) error {
	log.Printf("[noop-pub] password changed: user_id=%s email=%s", evt.UserID, evt.Email)
	return nil
}
