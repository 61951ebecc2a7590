package memory

import (
	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/profile"
)

// DemoPassword is the legacy plaintext credential of every demo principal.
// Each is upgraded to argon2id on first login.
const DemoPassword = "portal-demo"

// Demo returns a store seeded with one principal per role:
//
//	admin   (1)  admin
//	jdoe    (30) lecturer in Computing
//	mhead   (31) hod, head of Computing
//	asmith  (40) student in BSc Computing
//	ops     (50) tech
func Demo() *Store {
	s := New()

	computing := int64(1)
	headLecturer := int64(4)
	program := int64(11)

	s.AddDepartment(profile.Department{ID: computing, Name: "Computing", HeadRef: &headLecturer})

	s.AddPrincipal(portalauth.Principal{ID: 1, Username: "admin", Email: "admin@portal.test", Credential: DemoPassword, Role: portalauth.RoleAdmin, Status: portalauth.StatusActive})
	s.AddPrincipal(portalauth.Principal{ID: 30, Username: "jdoe", Email: "jdoe@portal.test", Credential: DemoPassword, Role: portalauth.RoleLecturer, Status: portalauth.StatusActive})
	s.AddPrincipal(portalauth.Principal{ID: 31, Username: "mhead", Email: "mhead@portal.test", Credential: DemoPassword, Role: portalauth.RoleHOD, Status: portalauth.StatusActive})
	s.AddPrincipal(portalauth.Principal{ID: 40, Username: "asmith", Email: "asmith@portal.test", Credential: DemoPassword, Role: portalauth.RoleStudent, Status: portalauth.StatusActive})
	s.AddPrincipal(portalauth.Principal{ID: 50, Username: "ops", Email: "ops@portal.test", Credential: DemoPassword, Role: portalauth.RoleTech, Status: portalauth.StatusActive})

	s.AddLecturer(30, profile.LecturerRecord{LecturerID: 3, EmployeeID: "EMP-003", EducationLevel: "MSc", DepartmentID: &computing, Role: "lecturer"})
	s.AddLecturer(31, profile.LecturerRecord{LecturerID: headLecturer, EmployeeID: "EMP-004", EducationLevel: "PhD", DepartmentID: &computing, Role: "hod"})
	s.AddStudent(40, profile.StudentRecord{
		StudentID:    400,
		RegNo:        "CS/2024/040",
		YearLevel:    "2",
		ProgramID:    &program,
		ProgramName:  "BSc Computing",
		DepartmentID: &computing,
	})
	return s
}
