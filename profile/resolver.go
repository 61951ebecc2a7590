package profile

import (
	"context"
	"errors"
	"fmt"
)

// Subject identifies the principal being resolved.
type Subject struct {
	PrincipalID int64
	Role        Role
}

// Resolution is a resolved profile plus any data-quality flags raised on
// the way.
type Resolution struct {
	Profile RoleProfile
	Flags   []Flag
}

// Resolver loads role profiles from a [Store]. It holds no mutable state.
type Resolver struct {
	store Store
}

// NewResolver returns a resolver over store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the profile variant for s.Role, or a [*NotAssignedError]
// when a lecturer or head of department has no usable assignment.
func (r *Resolver) Resolve(ctx context.Context, s Subject) (Resolution, error) {
	if r == nil || r.store == nil {
		return Resolution{}, errors.New("profile resolver not configured")
	}

	switch s.Role {
	case RoleStudent:
		return r.student(ctx, s)
	case RoleLecturer:
		return r.lecturer(ctx, s)
	case RoleHOD:
		return r.headOfDepartment(ctx, s)
	case RoleAdmin:
		return Resolution{Profile: AdminProfile{}}, nil
	case RoleTech:
		return Resolution{Profile: TechProfile{}}, nil
	default:
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnsupportedRole, s.Role)
	}
}

func (r *Resolver) student(ctx context.Context, s Subject) (Resolution, error) {
	rec, err := r.store.StudentByPrincipal(ctx, s.PrincipalID)
	if errors.Is(err, ErrNotFound) {
		return degradedStudent(StudentProfile{}), nil
	}
	if err != nil {
		return Resolution{}, err
	}

	p := StudentProfile{
		StudentID: rec.StudentID,
		RegNo:     rec.RegNo,
		YearLevel: rec.YearLevel,
	}
	if rec.ProgramID == nil {
		return degradedStudent(p), nil
	}
	p.Program = Ref{ID: *rec.ProgramID, Name: rec.ProgramName}
	if rec.DepartmentID == nil {
		p.Department = Unassigned
		p.Degraded = true
		return Resolution{Profile: p, Flags: []Flag{FlagStudentDegraded}}, nil
	}
	p.Department = Ref{ID: *rec.DepartmentID, Name: rec.DepartmentName}
	return Resolution{Profile: p}, nil
}

func degradedStudent(p StudentProfile) Resolution {
	p.Program = Unassigned
	p.Department = Unassigned
	p.Degraded = true
	return Resolution{Profile: p, Flags: []Flag{FlagStudentDegraded}}
}

func (r *Resolver) lecturer(ctx context.Context, s Subject) (Resolution, error) {
	rec, err := r.lecturerRecord(ctx, s)
	if err != nil {
		return Resolution{}, err
	}
	dept, _, err := r.ownDepartment(ctx, rec)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Profile: lecturerProfile(rec, dept)}, nil
}

func (r *Resolver) headOfDepartment(ctx context.Context, s Subject) (Resolution, error) {
	rec, err := r.lecturerRecord(ctx, s)
	if err != nil {
		return Resolution{}, err
	}

	byLecturer, err := r.store.DepartmentsByHeadRef(ctx, rec.LecturerID)
	if err != nil {
		return Resolution{}, err
	}
	table := append([]Department(nil), byLecturer...)
	if s.PrincipalID != rec.LecturerID {
		byPrincipal, err := r.store.DepartmentsByHeadRef(ctx, s.PrincipalID)
		if err != nil {
			return Resolution{}, err
		}
		table = append(table, byPrincipal...)
	}
	own, found, err := r.ownDepartment(ctx, rec)
	if err != nil {
		return Resolution{}, err
	}
	if found {
		table = append(table, own)
	}

	h, ok := ResolveHeadship(rec.LecturerID, s.PrincipalID, rec.DepartmentID, table)
	if !ok {
		return Resolution{}, &NotAssignedError{
			Role:        s.Role,
			PrincipalID: s.PrincipalID,
			Reason:      "no department headship reference matches",
		}
	}

	base := lecturerProfile(rec, own)
	if !found && h.IsHead {
		base.Department = h.Department.Ref()
	}
	p := HeadOfDepartmentProfile{
		LecturerProfile: base,
		HeadOf:          Unassigned,
		Headship:        h.Strategy,
		IsHead:          h.IsHead,
	}
	if h.IsHead {
		p.HeadOf = h.Department.Ref()
	}

	flags := append([]Flag(nil), h.Flags...)
	if h.IsHead && rec.Role != "" && Role(rec.Role) != RoleHOD {
		flags = append(flags, FlagRoleNotHOD)
	}
	return Resolution{Profile: p, Flags: flags}, nil
}

func (r *Resolver) lecturerRecord(ctx context.Context, s Subject) (LecturerRecord, error) {
	rec, err := r.store.LecturerByPrincipal(ctx, s.PrincipalID)
	if errors.Is(err, ErrNotFound) {
		return LecturerRecord{}, &NotAssignedError{
			Role:        s.Role,
			PrincipalID: s.PrincipalID,
			Reason:      "no lecturer profile",
		}
	}
	return rec, err
}

// ownDepartment loads the lecturer row's department. A dangling reference
// reads as not found.
func (r *Resolver) ownDepartment(ctx context.Context, rec LecturerRecord) (Department, bool, error) {
	if rec.DepartmentID == nil {
		return Department{}, false, nil
	}
	d, err := r.store.DepartmentByID(ctx, *rec.DepartmentID)
	if errors.Is(err, ErrNotFound) {
		return Department{}, false, nil
	}
	if err != nil {
		return Department{}, false, err
	}
	return d, true, nil
}

func lecturerProfile(rec LecturerRecord, dept Department) LecturerProfile {
	p := LecturerProfile{
		LecturerID:     rec.LecturerID,
		EmployeeID:     rec.EmployeeID,
		EducationLevel: rec.EducationLevel,
		Department:     Unassigned,
	}
	if dept.ID != 0 {
		p.Department = dept.Ref()
	}
	return p
}
