package domain

// Role governs which routes a principal may reach.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleHR        Role = "hr"
	RoleJobSeeker Role = "job_seeker"
)

// AllRoles lists the closed role enumeration.
var AllRoles = []Role{RoleAdmin, RoleHR, RoleJobSeeker}

// ParseRole maps a raw string onto the closed enumeration.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleHR, RoleJobSeeker:
		return Role(s), true
	}
	return "", false
}

// Valid reports whether r is a member of the closed enumeration.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// HasPermission reports whether role satisfies the required set. A nil role
// (profile not loaded, or unauthenticated) never satisfies any requirement,
// including an empty one. That deny-by-default must be preserved.
func HasPermission(role *Role, required []Role) bool {
	if role == nil {
		return false
	}
	for _, want := range required {
		if *role == want {
			return true
		}
	}
	return false
}
