package directory

import (
	"context"
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/civitas-platform/identity-service/internal/domain"
)

var personAttributes = []string{"uid", "cn", "displayName", "givenName", "sn", "mail"}

// search runs one subtree search and normalizes the result. A non-success
// result status maps to directory_search_failed.
func (c *Client) search(conn Conn, base, filter string, attrs []string) ([]Entry, error) {
	req := ldap.NewSearchRequest(
		base,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		filter,
		attrs,
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return nil, domain.ErrDirectorySearch(err)
	}

	entries := make([]Entry, 0, len(res.Entries))
	for _, e := range res.Entries {
		entries = append(entries, normalizeEntry(e))
	}
	return entries, nil
}

// FindByLogin searches every role OU in turn for an entry whose uid or mail
// equals the login value and returns the first match. A missing OU does not
// abort the sweep; domain.Error unwraps, so the ldap result code is still
// visible to IsErrorWithCode.
func (c *Client) FindByLogin(ctx context.Context, login string) (Entry, error) {
	filter := fmt.Sprintf("(|(uid=%s)(mail=%s))", ldap.EscapeFilter(login), ldap.EscapeFilter(login))

	var found *Entry
	err := c.withAdminConn(func(conn Conn) error {
		for _, base := range c.searchBases() {
			entries, err := c.search(conn, base, filter, personAttributes)
			if err != nil {
				if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
					continue
				}
				return err
			}
			if len(entries) > 0 {
				found = &entries[0]
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	if found == nil {
		return Entry{}, domain.ErrUserNotFound()
	}
	return *found, nil
}
