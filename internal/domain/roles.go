package domain

type Role string

const (
	// Free is the default tier for every new account.
	RoleFree Role = "free"
	// Business accounts have paid-tier access.
	RoleBusiness Role = "business"
	// Admin can manage other accounts, including their roles.
	RoleAdmin Role = "admin"
)

func IsValidRole(r string) bool {
	return r == string(RoleFree) || r == string(RoleBusiness) || r == string(RoleAdmin)
}

// RoleRank: bigger => higher privilege
func RoleRank(r string) int {
	switch r {
	case string(RoleFree):
		return 1
	case string(RoleBusiness):
		return 2
	case string(RoleAdmin):
		return 3
	default:
		return 0
	}
}
