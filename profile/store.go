package profile

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a [Store] for a missing row.
	ErrNotFound = errors.New("profile record not found")
	// ErrNotAssigned is the sentinel behind every [NotAssignedError].
	ErrNotAssigned = errors.New("principal not assigned")
	// ErrUnsupportedRole is returned for a role outside the closed set.
	ErrUnsupportedRole = errors.New("unsupported role")
)

// NotAssignedError reports a provisioning gap: the principal authenticated
// but has no usable role profile.
type NotAssignedError struct {
	Role        Role
	PrincipalID int64
	Reason      string
}

func (e *NotAssignedError) Error() string {
	return fmt.Sprintf("principal %d (%s) not assigned: %s", e.PrincipalID, e.Role, e.Reason)
}

func (e *NotAssignedError) Unwrap() error { return ErrNotAssigned }

// StudentRecord is a student row joined to its program and department.
// ProgramID is nil when the program row is missing.
type StudentRecord struct {
	StudentID      int64
	RegNo          string
	YearLevel      string
	ProgramID      *int64
	ProgramName    string
	DepartmentID   *int64
	DepartmentName string
}

// LecturerRecord is a lecturer profile row. Role is the row's own role
// column ("lecturer" or "hod"), empty when the store does not carry it.
type LecturerRecord struct {
	LecturerID     int64
	EmployeeID     string
	EducationLevel string
	DepartmentID   *int64
	Role           string
}

// Store is the read-only query interface the resolver depends on.
// Implementations return [ErrNotFound] for missing rows and any other error
// for transport failures.
type Store interface {
	StudentByPrincipal(ctx context.Context, principalID int64) (StudentRecord, error)
	LecturerByPrincipal(ctx context.Context, principalID int64) (LecturerRecord, error)
	DepartmentByID(ctx context.Context, id int64) (Department, error)
	DepartmentsByHeadRef(ctx context.Context, ref int64) ([]Department, error)
}
