package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/profile"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNilPool is returned by [New] without a pool.
	ErrNilPool = errors.New("postgres: nil pool")
	// ErrQuery wraps every driver failure other than a missing row.
	ErrQuery = errors.New("postgres: query failed")
)

// Store reads principals and role profiles from Postgres.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	mirrorStudentCredential bool
}

var (
	_ portalauth.CredentialStore  = (*Store)(nil)
	_ portalauth.CredentialProber = (*Store)(nil)
	_ profile.Store               = (*Store)(nil)
)

// Option configures a [Store].
type Option func(*Store)

// WithLogger sets the logger for best-effort write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStudentCredentialMirror controls whether a rewritten student
// credential is also copied to students.password. Older schemas keep a
// duplicate column there; the copy is best-effort. Enabled by default.
func WithStudentCredentialMirror(enabled bool) Option {
	return func(s *Store) {
		s.mirrorStudentCredential = enabled
	}
}

// New returns a Store reading through pool. It returns [ErrNilPool] for a
// nil pool.
func New(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	s := &Store{
		pool:                    pool,
		logger:                  slog.New(slog.NewTextHandler(io.Discard, nil)),
		mirrorStudentCredential: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ping checks the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return nil
}

func queryErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrQuery, op, err)
}

/*
====================================
CREDENTIALS
====================================
*/

const principalColumns = `id, username, email, password, role, COALESCE(status, ''), last_login`

func scanPrincipal(row pgx.Row) (portalauth.Principal, error) {
	var (
		p      portalauth.Principal
		role   string
		status string
	)
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.Credential, &role, &status, &p.LastLogin)
	if err != nil {
		return portalauth.Principal{}, err
	}
	p.Role = portalauth.Role(role)
	p.Status = portalauth.Status(status)
	return p, nil
}

// PrincipalByIdentifier matches identifier against email or username,
// case-insensitively, for one role.
func (s *Store) PrincipalByIdentifier(ctx context.Context, identifier string, role portalauth.Role) (portalauth.Principal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+principalColumns+`
		FROM users
		WHERE (lower(email) = lower($1) OR lower(username) = lower($1))
		  AND role = $2
		ORDER BY id
		LIMIT 1
	`, identifier, string(role))
	p, err := scanPrincipal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return portalauth.Principal{}, portalauth.ErrPrincipalNotFound
		}
		return portalauth.Principal{}, queryErr("principal lookup", err)
	}
	return p, nil
}

// PrincipalByIdentifierAnyRole is PrincipalByIdentifier without the role
// filter. The lowest id wins when several rows match.
func (s *Store) PrincipalByIdentifierAnyRole(ctx context.Context, identifier string) (portalauth.Principal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+principalColumns+`
		FROM users
		WHERE lower(email) = lower($1) OR lower(username) = lower($1)
		ORDER BY id
		LIMIT 1
	`, identifier)
	p, err := scanPrincipal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return portalauth.Principal{}, portalauth.ErrPrincipalNotFound
		}
		return portalauth.Principal{}, queryErr("principal probe", err)
	}
	return p, nil
}

// UpdateCredential replaces the stored credential. For students the
// duplicate column is updated afterwards; its failure is only logged.
func (s *Store) UpdateCredential(ctx context.Context, principalID int64, credential string) error {
	var role string
	err := s.pool.QueryRow(ctx, `
		UPDATE users
		SET password = $1, updated_at = now()
		WHERE id = $2
		RETURNING role
	`, credential, principalID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return portalauth.ErrPrincipalNotFound
		}
		return queryErr("credential update", err)
	}

	if s.mirrorStudentCredential && portalauth.Role(role) == portalauth.RoleStudent {
		if _, err := s.pool.Exec(ctx, `UPDATE students SET password = $1 WHERE user_id = $2`, credential, principalID); err != nil {
			s.logger.Warn("portalauth: student credential mirror failed", "principal_id", principalID, "error", err)
		}
	}
	return nil
}

// RecordLogin stamps users.last_login for principalID.
func (s *Store) RecordLogin(ctx context.Context, principalID int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at.UTC(), principalID)
	if err != nil {
		return queryErr("last login update", err)
	}
	if tag.RowsAffected() == 0 {
		return portalauth.ErrPrincipalNotFound
	}
	return nil
}

/*
====================================
PROFILES
====================================
*/

// StudentByPrincipal joins students to options (programs) and departments.
// A dangling option_id yields nil ProgramID and DepartmentID.
func (s *Store) StudentByPrincipal(ctx context.Context, principalID int64) (profile.StudentRecord, error) {
	var rec profile.StudentRecord
	err := s.pool.QueryRow(ctx, `
		SELECT s.id, COALESCE(s.reg_no, ''), COALESCE(s.year_level::text, ''),
		       o.id, COALESCE(o.name, ''), d.id, COALESCE(d.name, '')
		FROM students s
		LEFT JOIN options o ON o.id = s.option_id
		LEFT JOIN departments d ON d.id = o.department_id
		WHERE s.user_id = $1
		ORDER BY s.id
		LIMIT 1
	`, principalID).Scan(
		&rec.StudentID,
		&rec.RegNo,
		&rec.YearLevel,
		&rec.ProgramID,
		&rec.ProgramName,
		&rec.DepartmentID,
		&rec.DepartmentName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.StudentRecord{}, profile.ErrNotFound
		}
		return profile.StudentRecord{}, queryErr("student lookup", err)
	}
	return rec, nil
}

// LecturerByPrincipal returns the lecturer row linked to principalID, or
// [profile.ErrNotFound].
func (s *Store) LecturerByPrincipal(ctx context.Context, principalID int64) (profile.LecturerRecord, error) {
	var rec profile.LecturerRecord
	err := s.pool.QueryRow(ctx, `
		SELECT id, COALESCE(id_number, ''), COALESCE(education_level::text, ''), department_id, COALESCE(role::text, '')
		FROM lecturers
		WHERE user_id = $1
		ORDER BY id
		LIMIT 1
	`, principalID).Scan(&rec.LecturerID, &rec.EmployeeID, &rec.EducationLevel, &rec.DepartmentID, &rec.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.LecturerRecord{}, profile.ErrNotFound
		}
		return profile.LecturerRecord{}, queryErr("lecturer lookup", err)
	}
	return rec, nil
}

func scanDepartment(row pgx.CollectableRow) (profile.Department, error) {
	var d profile.Department
	err := row.Scan(&d.ID, &d.Name, &d.HeadRef)
	return d, err
}

// DepartmentByID implements [profile.Store].
func (s *Store) DepartmentByID(ctx context.Context, id int64) (profile.Department, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, hod_id FROM departments WHERE id = $1`, id)
	if err != nil {
		return profile.Department{}, queryErr("department lookup", err)
	}
	d, err := pgx.CollectExactlyOneRow(rows, scanDepartment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.Department{}, profile.ErrNotFound
		}
		return profile.Department{}, queryErr("department lookup", err)
	}
	return d, nil
}

// DepartmentsByHeadRef returns departments whose hod_id equals ref, by id.
func (s *Store) DepartmentsByHeadRef(ctx context.Context, ref int64) ([]profile.Department, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, hod_id FROM departments WHERE hod_id = $1 ORDER BY id`, ref)
	if err != nil {
		return nil, queryErr("headship lookup", err)
	}
	ds, err := pgx.CollectRows(rows, scanDepartment)
	if err != nil {
		return nil, queryErr("headship lookup", err)
	}
	return ds, nil
}
