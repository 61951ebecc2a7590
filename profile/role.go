package profile

import "strings"

// Role is a principal's declared role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleLecturer Role = "lecturer"
	RoleStudent  Role = "student"
	RoleHOD      Role = "hod"
	RoleTech     Role = "tech"
)

// Roles lists every supported role in a stable order.
var Roles = []Role{RoleAdmin, RoleLecturer, RoleStudent, RoleHOD, RoleTech}

// ParseRole maps a submitted role token to a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleLecturer, RoleStudent, RoleHOD, RoleTech:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Landing route names.
const (
	RouteStudentDashboard  = "student-dashboard"
	RouteLecturerDashboard = "lecturer-dashboard"
	RouteHODDashboard      = "hod-dashboard"
	RouteAdminDashboard    = "admin-dashboard"
	RouteTechDashboard     = "tech-dashboard"

	// RouteNotAssigned renders the "not assigned" notice after a failed
	// profile resolution.
	RouteNotAssigned = "not-assigned"
	// RouteLogin is the login page every other failure returns to.
	RouteLogin = "login"
)

// LandingRoute returns the post-login route for r, or "" for an unknown role.
func LandingRoute(r Role) string {
	switch r {
	case RoleStudent:
		return RouteStudentDashboard
	case RoleLecturer:
		return RouteLecturerDashboard
	case RoleHOD:
		return RouteHODDashboard
	case RoleAdmin:
		return RouteAdminDashboard
	case RoleTech:
		return RouteTechDashboard
	}
	return ""
}
