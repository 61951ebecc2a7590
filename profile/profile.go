package profile

// UnassignedName marks a program or department reference that could not be
// resolved.
const UnassignedName = "unassigned"

// Ref names a program or department by id.
type Ref struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

// Unassigned is the reference used for degraded profiles.
var Unassigned = Ref{Name: UnassignedName}

// Assigned reports whether r points at a real row.
func (r Ref) Assigned() bool { return r.ID != 0 }

// RoleProfile is the closed set of role-specific profiles. Only the types in
// this package implement it.
type RoleProfile interface {
	Role() Role
	LandingRoute() string
	isRoleProfile()
}

// StudentProfile is resolved through program to department. A student with
// no program row still resolves, with Degraded set and unassigned refs.
type StudentProfile struct {
	StudentID  int64  `json:"student_id,omitempty"`
	RegNo      string `json:"reg_no,omitempty"`
	YearLevel  string `json:"year_level,omitempty"`
	Program    Ref    `json:"program"`
	Department Ref    `json:"department"`
	Degraded   bool   `json:"degraded,omitempty"`
}

func (StudentProfile) Role() Role           { return RoleStudent }
func (StudentProfile) LandingRoute() string { return RouteStudentDashboard }
func (p StudentProfile) DepartmentRef() Ref { return p.Department }
func (StudentProfile) isRoleProfile()       {}

// LecturerProfile is resolved through the lecturer row's department_id.
type LecturerProfile struct {
	LecturerID     int64  `json:"lecturer_id"`
	EmployeeID     string `json:"employee_id,omitempty"`
	EducationLevel string `json:"education_level,omitempty"`
	Department     Ref    `json:"department"`
}

func (LecturerProfile) Role() Role           { return RoleLecturer }
func (LecturerProfile) LandingRoute() string { return RouteLecturerDashboard }
func (p LecturerProfile) DepartmentRef() Ref { return p.Department }
func (LecturerProfile) isRoleProfile()       {}

// HeadOfDepartmentProfile extends a lecturer profile with the headship
// resolution. Department is where the lecturer belongs; HeadOf is set only
// when IsHead is true. A department-fallback resolution yields membership
// with IsHead false.
type HeadOfDepartmentProfile struct {
	LecturerProfile
	HeadOf   Ref      `json:"head_of"`
	Headship Strategy `json:"headship"`
	IsHead   bool     `json:"is_head"`
}

func (HeadOfDepartmentProfile) Role() Role           { return RoleHOD }
func (HeadOfDepartmentProfile) LandingRoute() string { return RouteHODDashboard }

// DepartmentRef returns the headed department when IsHead, otherwise the
// member department.
func (p HeadOfDepartmentProfile) DepartmentRef() Ref {
	if p.IsHead {
		return p.HeadOf
	}
	return p.Department
}

// AdminProfile carries no attributes beyond the principal.
type AdminProfile struct{}

func (AdminProfile) Role() Role           { return RoleAdmin }
func (AdminProfile) LandingRoute() string { return RouteAdminDashboard }
func (AdminProfile) isRoleProfile()       {}

// TechProfile carries no attributes beyond the principal.
type TechProfile struct{}

func (TechProfile) Role() Role           { return RoleTech }
func (TechProfile) LandingRoute() string { return RouteTechDashboard }
func (TechProfile) isRoleProfile()       {}
