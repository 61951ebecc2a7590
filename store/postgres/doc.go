// Package postgres adapts the portal's relational schema to
// [portalauth.CredentialStore], [portalauth.CredentialProber] and
// [profile.Store] using a pgx connection pool.
//
// Tables read:
//
//   - users       (id, username, email, password, role, status, last_login)
//   - students    (id, user_id, reg_no, year_level, option_id, password)
//   - options     (id, name, department_id)       program rows
//   - lecturers   (id, user_id, id_number, education_level, department_id, role)
//   - departments (id, name, hod_id)
//
// Missing rows map to [portalauth.ErrPrincipalNotFound] or
// [profile.ErrNotFound]; every other failure is returned wrapped so the
// engine reports the store as unavailable.
package postgres
