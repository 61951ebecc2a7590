package profile

import "fmt"

// Snapshot is the serializable form of a [RoleProfile], stored with the
// security context.
type Snapshot struct {
	Kind             Role                     `json:"kind"`
	Student          *StudentProfile          `json:"student,omitempty"`
	Lecturer         *LecturerProfile         `json:"lecturer,omitempty"`
	HeadOfDepartment *HeadOfDepartmentProfile `json:"hod,omitempty"`
}

// SnapshotOf captures p. A nil profile yields the zero Snapshot.
func SnapshotOf(p RoleProfile) Snapshot {
	switch v := p.(type) {
	case StudentProfile:
		return Snapshot{Kind: RoleStudent, Student: &v}
	case LecturerProfile:
		return Snapshot{Kind: RoleLecturer, Lecturer: &v}
	case HeadOfDepartmentProfile:
		return Snapshot{Kind: RoleHOD, HeadOfDepartment: &v}
	case AdminProfile:
		return Snapshot{Kind: RoleAdmin}
	case TechProfile:
		return Snapshot{Kind: RoleTech}
	}
	return Snapshot{}
}

// Profile rebuilds the variant held by s.
func (s Snapshot) Profile() (RoleProfile, error) {
	switch s.Kind {
	case RoleStudent:
		if s.Student == nil {
			return nil, fmt.Errorf("snapshot %q missing body", s.Kind)
		}
		return *s.Student, nil
	case RoleLecturer:
		if s.Lecturer == nil {
			return nil, fmt.Errorf("snapshot %q missing body", s.Kind)
		}
		return *s.Lecturer, nil
	case RoleHOD:
		if s.HeadOfDepartment == nil {
			return nil, fmt.Errorf("snapshot %q missing body", s.Kind)
		}
		return *s.HeadOfDepartment, nil
	case RoleAdmin:
		return AdminProfile{}, nil
	case RoleTech:
		return TechProfile{}, nil
	}
	return nil, fmt.Errorf("%w: snapshot kind %q", ErrUnsupportedRole, s.Kind)
}
