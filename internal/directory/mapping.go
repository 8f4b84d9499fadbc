package directory

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/civitas-platform/identity-service/internal/domain"
)

// Role placement is a fixed mapping; anything unrecognized lands in the
// normal user subtree.

var roleOUs = map[string]string{
	string(domain.RoleUser):         "ou=users",
	string(domain.RoleAdmin):        "ou=admins",
	string(domain.RoleMunicipality): "ou=towns",
}

var roleGroups = map[string]string{
	string(domain.RoleUser):         "cn=user",
	string(domain.RoleAdmin):        "cn=admin",
	string(domain.RoleMunicipality): "cn=municipality",
}

func roleOU(role string) string {
	if ou, ok := roleOUs[role]; ok {
		return ou
	}
	return roleOUs[string(domain.RoleUser)]
}

func roleGroup(role string) string {
	if cn, ok := roleGroups[role]; ok {
		return cn
	}
	return roleGroups[string(domain.RoleUser)]
}

// UserDN composes the DN for a uid under the OU mapped to role.
func (c *Client) UserDN(role, uid string) string {
	return fmt.Sprintf("uid=%s,%s,%s", ldap.EscapeDN(uid), roleOU(role), c.cfg.BaseDN)
}

// GroupDN resolves the group entry holding memberUid values for a role.
func (c *Client) GroupDN(role string) string {
	return fmt.Sprintf("%s,ou=groups,%s", roleGroup(role), c.cfg.BaseDN)
}

// searchBases lists every role OU, in a stable order, for forward lookups.
func (c *Client) searchBases() []string {
	roles := []string{string(domain.RoleUser), string(domain.RoleAdmin), string(domain.RoleMunicipality)}
	bases := make([]string, 0, len(roles))
	for _, r := range roles {
		bases = append(bases, roleOU(r)+","+c.cfg.BaseDN)
	}
	return bases
}
