package portalauth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/portalauth/profile"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testTicketKey = []byte("0123456789abcdef0123456789abcdef")

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// testConfig keeps argon2 cheap so login tests stay fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Ticket.PrivateKey = append([]byte(nil), testTicketKey...)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16
	cfg.Store.QueryTimeout = time.Second
	return cfg
}

type fakeCredentials struct {
	mu         sync.Mutex
	principals []Principal
	updates    map[int64]string
	logins     map[int64]time.Time
	lookups    int

	// blockUpdates makes UpdateCredential wait for its context.
	blockUpdates bool
}

func newFakeCredentials(principals ...Principal) *fakeCredentials {
	return &fakeCredentials{
		principals: principals,
		updates:    map[int64]string{},
		logins:     map[int64]time.Time{},
	}
}

func matchesIdentifier(p Principal, identifier string) bool {
	return strings.EqualFold(p.Username, identifier) || strings.EqualFold(p.Email, identifier)
}

func (f *fakeCredentials) PrincipalByIdentifier(_ context.Context, identifier string, role Role) (Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	for _, p := range f.principals {
		if matchesIdentifier(p, identifier) && p.Role == role {
			return p, nil
		}
	}
	return Principal{}, ErrPrincipalNotFound
}

func (f *fakeCredentials) PrincipalByIdentifierAnyRole(_ context.Context, identifier string) (Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.principals {
		if matchesIdentifier(p, identifier) {
			return p, nil
		}
	}
	return Principal{}, ErrPrincipalNotFound
}

func (f *fakeCredentials) UpdateCredential(ctx context.Context, id int64, credential string) error {
	if f.blockUpdates {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = credential
	for i := range f.principals {
		if f.principals[i].ID == id {
			f.principals[i].Credential = credential
		}
	}
	return nil
}

func (f *fakeCredentials) RecordLogin(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins[id] = at
	return nil
}

func (f *fakeCredentials) credential(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.principals {
		if p.ID == id {
			return p.Credential
		}
	}
	return ""
}

func (f *fakeCredentials) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

type fakeProfiles struct {
	students    map[int64]profile.StudentRecord
	lecturers   map[int64]profile.LecturerRecord
	departments []profile.Department
}

func (f *fakeProfiles) StudentByPrincipal(_ context.Context, id int64) (profile.StudentRecord, error) {
	if rec, ok := f.students[id]; ok {
		return rec, nil
	}
	return profile.StudentRecord{}, profile.ErrNotFound
}

func (f *fakeProfiles) LecturerByPrincipal(_ context.Context, id int64) (profile.LecturerRecord, error) {
	if rec, ok := f.lecturers[id]; ok {
		return rec, nil
	}
	return profile.LecturerRecord{}, profile.ErrNotFound
}

func (f *fakeProfiles) DepartmentByID(_ context.Context, id int64) (profile.Department, error) {
	for _, d := range f.departments {
		if d.ID == id {
			return d, nil
		}
	}
	return profile.Department{}, profile.ErrNotFound
}

func (f *fakeProfiles) DepartmentsByHeadRef(_ context.Context, ref int64) ([]profile.Department, error) {
	var out []profile.Department
	for _, d := range f.departments {
		if d.HeadRef != nil && *d.HeadRef == ref {
			out = append(out, d)
		}
	}
	return out, nil
}

func int64Ptr(v int64) *int64 { return &v }

// lecturerFixture is principal 30 ("jdoe"), lecturer 3 in department 1.
func lecturerFixture() (*fakeCredentials, *fakeProfiles) {
	creds := newFakeCredentials(Principal{
		ID:         30,
		Username:   "jdoe",
		Email:      "jdoe@portal.test",
		Credential: "secret123",
		Role:       RoleLecturer,
		Status:     StatusActive,
	})
	profiles := &fakeProfiles{
		lecturers: map[int64]profile.LecturerRecord{
			30: {LecturerID: 3, EmployeeID: "EMP-3", DepartmentID: int64Ptr(1), Role: "lecturer"},
		},
		departments: []profile.Department{
			{ID: 1, Name: "Computing", HeadRef: int64Ptr(77)},
		},
	}
	return creds, profiles
}

type testEngine struct {
	*Engine
	mr *miniredis.Miniredis
}

func newTestEngine(t *testing.T, cfg Config, creds CredentialStore, profiles profile.Store, sink AuditSink) testEngine {
	t.Helper()

	mr, rdb := newTestRedis(t)
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(creds).
		WithProfileStore(profiles).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return testEngine{Engine: engine, mr: mr}
}

func clientContext(ip string) context.Context {
	return WithUserAgent(WithClientIP(context.Background(), ip), "test-agent/1.0")
}

// loginAs opens the form and submits it once.
func (te testEngine) loginAs(t *testing.T, ctx context.Context, req LoginRequest) (LoginPage, LoginResult, error) {
	t.Helper()

	page, err := te.BeginLogin(ctx, "")
	if err != nil {
		t.Fatalf("BeginLogin failed: %v", err)
	}
	req.CSRFToken = page.CSRFToken
	res, err := te.Login(ctx, page.Ticket, req)
	return page, res, err
}
