package logger

import (
	"context"

	"github.com/rs/zerolog"

	appctx "github.com/civitas-platform/identity-service/internal/pkg/context"
)

// WithCtx returns the global logger enriched with the request id when
// the context carries one.
func WithCtx(ctx context.Context) zerolog.Logger {
	if rid := appctx.GetRequestID(ctx); rid != "" {
		return Logger.With().Str("request_id", rid).Logger()
	}
	return Logger
}
