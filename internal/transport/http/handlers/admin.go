package http_handlers

import (
	"html/template"
	"net/http"

	"github.com/civitas-platform/identity-service/internal/transport/http/middleware"
)

// AdminHomeHandler renders the back-office landing page. Access control
// happens entirely in the guard middleware; by the time a request lands
// here the caller is a verified admin.
type AdminHomeHandler struct{}

func NewAdminHomeHandler() *AdminHomeHandler { return &AdminHomeHandler{} }

var adminHomeTmpl = template.Must(template.New("admin_home").Parse(`<!DOCTYPE html>
<html>
<head><title>Administration</title></head>
<body>
<h1>Administration</h1>
<p>Signed in as {{.FirstName}} {{.LastName}} ({{.Email}})</p>
</body>
</html>
`))

func (h *AdminHomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = adminHomeTmpl.Execute(w, p)
}
