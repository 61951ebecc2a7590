// Package memory is an in-process credential and profile store. It backs
// tests and the server's demo mode; it is not meant for production data.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/profile"
)

// Store implements [portalauth.CredentialStore], [portalauth.CredentialProber]
// and [profile.Store]. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	principals  map[int64]portalauth.Principal
	students    map[int64]profile.StudentRecord
	lecturers   map[int64]profile.LecturerRecord
	departments map[int64]profile.Department
}

var (
	_ portalauth.CredentialStore  = (*Store)(nil)
	_ portalauth.CredentialProber = (*Store)(nil)
	_ profile.Store               = (*Store)(nil)
)

func New() *Store {
	return &Store{
		principals:  make(map[int64]portalauth.Principal),
		students:    make(map[int64]profile.StudentRecord),
		lecturers:   make(map[int64]profile.LecturerRecord),
		departments: make(map[int64]profile.Department),
	}
}

// AddPrincipal inserts or replaces p by ID.
func (s *Store) AddPrincipal(p portalauth.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principals[p.ID] = p
}

// AddStudent attaches rec to principalID.
func (s *Store) AddStudent(principalID int64, rec profile.StudentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[principalID] = rec
}

// AddLecturer attaches rec to principalID. Lecturer and HOD principals
// share the lecturer table.
func (s *Store) AddLecturer(principalID int64, rec profile.LecturerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lecturers[principalID] = rec
}

func (s *Store) AddDepartment(d profile.Department) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departments[d.ID] = d
}

// Principal returns a copy of the principal stored under id.
func (s *Store) Principal(id int64) (portalauth.Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[id]
	return p, ok
}

/*
====================================
CREDENTIAL STORE
====================================
*/

func (s *Store) PrincipalByIdentifier(ctx context.Context, identifier string, role portalauth.Role) (portalauth.Principal, error) {
	return s.find(ctx, identifier, func(p portalauth.Principal) bool { return p.Role == role })
}

func (s *Store) PrincipalByIdentifierAnyRole(ctx context.Context, identifier string) (portalauth.Principal, error) {
	return s.find(ctx, identifier, func(portalauth.Principal) bool { return true })
}

// find matches identifier against username or email, case-insensitively.
// Ties resolve to the lowest principal id.
func (s *Store) find(ctx context.Context, identifier string, keep func(portalauth.Principal) bool) (portalauth.Principal, error) {
	if err := ctx.Err(); err != nil {
		return portalauth.Principal{}, err
	}
	identifier = strings.TrimSpace(identifier)

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.principals))
	for id := range s.principals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		p := s.principals[id]
		if !strings.EqualFold(p.Username, identifier) && !strings.EqualFold(p.Email, identifier) {
			continue
		}
		if keep(p) {
			return p, nil
		}
	}
	return portalauth.Principal{}, portalauth.ErrPrincipalNotFound
}

func (s *Store) UpdateCredential(ctx context.Context, principalID int64, credential string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok {
		return portalauth.ErrPrincipalNotFound
	}
	p.Credential = credential
	s.principals[principalID] = p
	return nil
}

func (s *Store) RecordLogin(ctx context.Context, principalID int64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok {
		return portalauth.ErrPrincipalNotFound
	}
	at = at.UTC()
	p.LastLogin = &at
	s.principals[principalID] = p
	return nil
}

/*
====================================
PROFILE STORE
====================================
*/

// StudentByPrincipal joins the student row to its program's department the
// way the relational schema does: DepartmentID is set only when the program
// row exists.
func (s *Store) StudentByPrincipal(ctx context.Context, principalID int64) (profile.StudentRecord, error) {
	if err := ctx.Err(); err != nil {
		return profile.StudentRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.students[principalID]
	if !ok {
		return profile.StudentRecord{}, profile.ErrNotFound
	}
	if rec.DepartmentID != nil && rec.DepartmentName == "" {
		if d, ok := s.departments[*rec.DepartmentID]; ok {
			rec.DepartmentName = d.Name
		}
	}
	return rec, nil
}

func (s *Store) LecturerByPrincipal(ctx context.Context, principalID int64) (profile.LecturerRecord, error) {
	if err := ctx.Err(); err != nil {
		return profile.LecturerRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.lecturers[principalID]
	if !ok {
		return profile.LecturerRecord{}, profile.ErrNotFound
	}
	return rec, nil
}

func (s *Store) DepartmentByID(ctx context.Context, id int64) (profile.Department, error) {
	if err := ctx.Err(); err != nil {
		return profile.Department{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.departments[id]
	if !ok {
		return profile.Department{}, profile.ErrNotFound
	}
	return d, nil
}

// DepartmentsByHeadRef returns every department whose head reference equals
// ref, ordered by id.
func (s *Store) DepartmentsByHeadRef(ctx context.Context, ref int64) ([]profile.Department, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []profile.Department
	for _, d := range s.departments {
		if d.HeadRef != nil && *d.HeadRef == ref {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
