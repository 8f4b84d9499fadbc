package directory

import (
	"context"

	"github.com/go-ldap/ldap/v3"

	"github.com/civitas-platform/identity-service/internal/application/identity"
	"github.com/civitas-platform/identity-service/internal/domain"
)

// add creates an entry; "entry already exists" is success so the whole
// create flow stays retryable.
func (c *Client) add(conn Conn, dn string, attrs map[string][]string) error {
	req := ldap.NewAddRequest(dn, nil)
	for name, vals := range attrs {
		req.Attribute(name, vals)
	}
	if err := conn.Add(req); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists) {
			return nil
		}
		return domain.ErrDirectoryOp(err)
	}
	return nil
}

// addUserToGroup appends uid to the role group's memberUid list.
// "already a member" is success.
func (c *Client) addUserToGroup(conn Conn, uid, role string) error {
	req := ldap.NewModifyRequest(c.GroupDN(role), nil)
	req.Add("memberUid", []string{uid})
	if err := conn.Modify(req); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultAttributeOrValueExists) {
			return nil
		}
		return domain.ErrDirectoryOp(err)
	}
	return nil
}

// CreateUser adds the person entry under the OU mapped to the role and
// registers its uid in the matching group. Both steps are idempotent, so a
// caller may retry the whole operation after a partial failure.
func (c *Client) CreateUser(ctx context.Context, u identity.DirectoryUser) (string, error) {
	dn := c.UserDN(u.Role, u.UID)

	hash, err := c.enc.Encode(u.Password)
	if err != nil {
		return "", err
	}

	attrs := map[string][]string{
		"objectClass":  {"top", "person", "organizationalPerson", "inetOrgPerson"},
		"uid":          {u.UID},
		"cn":           {u.FirstName + " " + u.LastName},
		"displayName":  {u.FirstName + " " + u.LastName},
		"givenName":    {u.FirstName},
		"sn":           {u.LastName},
		"mail":         {u.Email},
		"userPassword": {hash},
	}

	err = c.withAdminConn(func(conn Conn) error {
		if err := c.add(conn, dn, attrs); err != nil {
			return err
		}
		return c.addUserToGroup(conn, u.UID, u.Role)
	})
	if err != nil {
		return "", err
	}

	c.log.Debug().Str("dn", dn).Str("role", u.Role).Msg("directory user created")
	return dn, nil
}

// SetPassword replaces the credential on an existing entry.
func (c *Client) SetPassword(ctx context.Context, dn, newPassword string) error {
	hash, err := c.enc.Encode(newPassword)
	if err != nil {
		return err
	}

	return c.withAdminConn(func(conn Conn) error {
		req := ldap.NewModifyRequest(dn, nil)
		req.Replace("userPassword", []string{hash})
		if err := conn.Modify(req); err != nil {
			return domain.ErrDirectoryOp(err)
		}
		return nil
	})
}

// SetPasswordByEmail resolves the entry by login and replaces its credential.
func (c *Client) SetPasswordByEmail(ctx context.Context, login, newPassword string) error {
	entry, err := c.FindByLogin(ctx, login)
	if err != nil {
		return err
	}
	return c.SetPassword(ctx, entry.DN, newPassword)
}
