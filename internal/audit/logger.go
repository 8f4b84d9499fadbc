package audit

import (
	"context"

	"github.com/rs/zerolog"

	appctx "github.com/civitas-platform/identity-service/internal/pkg/context"
)

// Logger provides structured audit logging for identity business events.
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// UserRegistered logs a completed registration.
func (l *Logger) UserRegistered(ctx context.Context, userID, email, role string) {
	l.log.Info().
		Str("action", "user_registered").
		Str("user_id", userID).
		Str("email", maskEmail(email)).
		Str("role", role).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("User registered")
}

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, userID, email, ip string) {
	l.log.Info().
		Str("action", "login_success").
		Str("user_id", userID).
		Str("email", maskEmail(email)).
		Str("ip", ip).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("User logged in successfully")
}

// LoginFailed logs a failed sign-in attempt.
func (l *Logger) LoginFailed(ctx context.Context, email, ip, reason string) {
	l.log.Warn().
		Str("action", "login_failed").
		Str("email", maskEmail(email)).
		Str("ip", ip).
		Str("reason", reason).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("Login attempt failed")
}

// Logout logs a sign-out that destroyed a live session.
func (l *Logger) Logout(ctx context.Context, userID string) {
	l.log.Info().
		Str("action", "logout").
		Str("user_id", userID).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("User logged out")
}

// PasswordChanged logs an authenticated password change.
func (l *Logger) PasswordChanged(ctx context.Context, userID string) {
	l.log.Info().
		Str("action", "password_changed").
		Str("user_id", userID).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("User password changed")
}

// PasswordResetRequested logs a reset-link request.
func (l *Logger) PasswordResetRequested(ctx context.Context, email string) {
	l.log.Info().
		Str("action", "password_reset_requested").
		Str("email", maskEmail(email)).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("Password reset requested")
}

// PasswordReset logs a redeemed reset token.
func (l *Logger) PasswordReset(ctx context.Context, userID string) {
	l.log.Info().
		Str("action", "password_reset").
		Str("user_id", userID).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("User password reset")
}

// maskEmail partially masks email for privacy in logs.
func maskEmail(email string) string {
	if len(email) < 5 {
		return "***"
	}
	at := 0
	for i, c := range email {
		if c == '@' {
			at = i
			break
		}
	}
	if at < 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}
