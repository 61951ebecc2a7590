package portalauth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/profile"
	"github.com/MrEthical07/portalauth/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func buildEngine(t *testing.T, store *memory.Store) *portalauth.Engine {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := portalauth.DefaultConfig()
	cfg.Ticket.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16

	engine, err := portalauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithProfileStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func submit(t *testing.T, engine *portalauth.Engine, role, identifier, secret string) (portalauth.LoginResult, error) {
	t.Helper()

	ctx := portalauth.WithClientIP(context.Background(), "10.0.0.1")
	page, err := engine.BeginLogin(ctx, "")
	if err != nil {
		t.Fatalf("BeginLogin failed: %v", err)
	}
	return engine.Login(ctx, page.Ticket, portalauth.LoginRequest{
		Role:       role,
		Identifier: identifier,
		Secret:     secret,
		CSRFToken:  page.CSRFToken,
	})
}

func TestLecturerPlaintextLoginLandsAndUpgrades(t *testing.T) {
	store := memory.New()
	dept := int64(1)
	store.AddDepartment(profile.Department{ID: dept, Name: "Computing"})
	store.AddPrincipal(portalauth.Principal{ID: 30, Username: "jdoe", Email: "jdoe@portal.test", Credential: "correct-secret", Role: portalauth.RoleLecturer, Status: portalauth.StatusActive})
	store.AddLecturer(30, profile.LecturerRecord{LecturerID: 3, DepartmentID: &dept, Role: "lecturer"})
	engine := buildEngine(t, store)

	res, err := submit(t, engine, "lecturer", "jdoe", "correct-secret")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.Route != "lecturer-dashboard" {
		t.Fatalf("expected lecturer-dashboard, got %q", res.Route)
	}

	p, _ := store.Principal(30)
	if !strings.HasPrefix(p.Credential, "$argon2id$") {
		t.Fatalf("expected argon2id credential, got %q", p.Credential)
	}
	if p.LastLogin == nil || time.Since(*p.LastLogin) > time.Minute {
		t.Fatalf("expected fresh last login, got %v", p.LastLogin)
	}

	sc, err := engine.CheckSession(context.Background(), res.Ticket, portalauth.Roles(portalauth.RoleLecturer))
	if err != nil {
		t.Fatalf("CheckSession failed: %v", err)
	}
	if lp, ok := sc.Profile.(profile.LecturerProfile); !ok || lp.Department.Name != "Computing" {
		t.Fatalf("unexpected profile: %#v", sc.Profile)
	}
}

func TestUnassignedHODGetsNoSession(t *testing.T) {
	store := memory.New()
	store.AddPrincipal(portalauth.Principal{ID: 30, Username: "jdoe", Credential: "correct-secret", Role: portalauth.RoleHOD})
	store.AddLecturer(30, profile.LecturerRecord{LecturerID: 3, Role: "hod"})
	engine := buildEngine(t, store)

	res, err := submit(t, engine, "hod", "jdoe", "correct-secret")
	if !errors.Is(err, portalauth.ErrNotAssigned) {
		t.Fatalf("expected ErrNotAssigned, got %v", err)
	}
	if res.State != portalauth.StateProfileResolutionFailed {
		t.Fatalf("expected profile resolution failure, got %s", res.State)
	}
	if res.Route != "not-assigned" || res.Ticket != "" {
		t.Fatalf("unexpected result: %+v", res)
	}

	n, err := engine.InvalidatePrincipal(context.Background(), 30)
	if err != nil {
		t.Fatalf("InvalidatePrincipal failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no security context, found %d", n)
	}
}

func TestDemoStoreEveryRoleLogsIn(t *testing.T) {
	engine := buildEngine(t, memory.Demo())

	cases := map[string]string{
		"admin":  "admin",
		"jdoe":   "lecturer",
		"mhead":  "hod",
		"asmith": "student",
		"ops":    "tech",
	}
	for user, role := range cases {
		res, err := submit(t, engine, role, user, memory.DemoPassword)
		if err != nil {
			t.Fatalf("%s: login failed: %v", user, err)
		}
		if res.Context.Role != portalauth.Role(role) {
			t.Fatalf("%s: expected role %s, got %s", user, role, res.Context.Role)
		}
	}
}
