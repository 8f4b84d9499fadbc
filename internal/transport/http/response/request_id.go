package response

import (
	"net/http"

	appctx "github.com/civitas-platform/identity-service/internal/pkg/context"
)

// RequestIDFromContext extracts the request id placed by the RequestID middleware.
func RequestIDFromContext(r *http.Request) string {
	return appctx.GetRequestID(r.Context())
}
