package dto

// UserView is the standard user payload for identity responses.
type UserView struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// LoginData is returned by login: the bearer token plus the minimal user
// view the frontend renders from. The session id travels only in the
// HttpOnly cookie, never in JSON.
type LoginData struct {
	Message   string   `json:"message"`
	User      UserView `json:"user"`
	Token     string   `json:"token"`
	ExpiresIn int64    `json:"expires_in"` // seconds
}

type RegisterData struct {
	User UserView `json:"user"`
}

type MeData struct {
	User UserView `json:"user"`
}

type StatusData struct {
	Status string `json:"status"` // "ok"
}
