package directory

import (
	"context"

	"github.com/civitas-platform/identity-service/internal/domain"
)

// Authenticate tests a DN/password pair with a simple bind. No entry data is
// returned; success is the absence of an error.
func (c *Client) Authenticate(ctx context.Context, dn, password string) error {
	return c.withConn(func(conn Conn) error {
		if err := conn.Bind(dn, password); err != nil {
			return domain.ErrInvalidCredentials()
		}
		return nil
	})
}

// AuthenticateByEmail resolves the entry by uid or mail, then binds against
// its DN. A lookup miss returns the same invalid_credentials as a failed
// bind so this surface never reveals which condition occurred.
func (c *Client) AuthenticateByEmail(ctx context.Context, login, password string) error {
	entry, err := c.FindByLogin(ctx, login)
	if err != nil {
		if domain.Is(err, "user_not_found") {
			c.log.Debug().Str("login", login).Msg("directory lookup miss on authenticate")
			return domain.ErrInvalidCredentials()
		}
		return err
	}
	return c.Authenticate(ctx, entry.DN, password)
}
