package domain

type Role string

const (
	// Normal citizens reporting incidents.
	RoleUser Role = "user"
	// Admins manage the back office and may act in any conversation.
	RoleAdmin Role = "admin"
	// Municipality accounts handle incidents for their town.
	RoleMunicipality Role = "municipality"
)

const (
	RoleIDUser         = 1
	RoleIDAdmin        = 2
	RoleIDMunicipality = 3
)

// RoleFromID maps a relational role id to its role name.
// Unknown ids fall back to the normal user role.
func RoleFromID(id int) string {
	switch id {
	case RoleIDAdmin:
		return string(RoleAdmin)
	case RoleIDMunicipality:
		return string(RoleMunicipality)
	default:
		return string(RoleUser)
	}
}

// RoleID maps a role name back to its relational id, defaulting to user.
func RoleID(role string) int {
	switch role {
	case string(RoleAdmin):
		return RoleIDAdmin
	case string(RoleMunicipality):
		return RoleIDMunicipality
	default:
		return RoleIDUser
	}
}

func IsValidRole(r string) bool {
	return r == string(RoleUser) || r == string(RoleAdmin) || r == string(RoleMunicipality)
}
