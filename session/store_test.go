package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/portalauth/csrf"
	"github.com/MrEthical07/portalauth/profile"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, "ts"), mr
}

func testRecord(id string, principalID int64) *Record {
	now := time.Now()
	return &Record{
		ID:          id,
		PrincipalID: principalID,
		Username:    "jdoe",
		Role:        profile.RoleLecturer,
		Profile: profile.SnapshotOf(profile.LecturerProfile{
			LecturerID: 3,
			Department: profile.Ref{ID: 1, Name: "Computing"},
		}),
		CSRF:            csrf.State{Token: "tok", IssuedAt: now.UTC().Truncate(time.Second)},
		AuthenticatedAt: now.Unix(),
		CreatedAt:       now.Unix(),
		ExpiresAt:       now.Add(12 * time.Hour).Unix(),
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	ctx := context.Background()
	rec := testRecord("sid-1", 30)

	if err := store.Save(ctx, rec, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != "sid-1" || got.PrincipalID != 30 || got.Role != profile.RoleLecturer {
		t.Fatalf("unexpected record %+v", got)
	}
	if !got.CSRF.IssuedAt.Equal(rec.CSRF.IssuedAt) || got.CSRF.Token != "tok" {
		t.Fatalf("expected csrf state kept, got %+v", got.CSRF)
	}
	p, err := got.Profile.Profile()
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if lp := p.(profile.LecturerProfile); lp.Department.ID != 1 {
		t.Fatalf("expected lecturer department kept, got %+v", lp)
	}
}

func TestGetMissingAndCorrupt(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mr.Set("ts:bad", "\x09{}"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Get(ctx, "bad"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestRecordExpiresWithTTL(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	if err := store.Save(ctx, testRecord("sid-ttl", 30), 30*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	mr.FastForward(31 * time.Minute)
	if _, err := store.Get(ctx, "sid-ttl"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record gone after ttl, got %v", err)
	}
}

func TestGetPastAbsoluteLifetimeDeletes(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()
	rec := testRecord("sid-abs", 30)

	if err := store.Save(ctx, rec, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	late := store.WithClock(func() time.Time { return time.Unix(rec.ExpiresAt, 0).Add(time.Second) })
	if _, err := late.Get(ctx, "sid-abs"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if mr.Exists("ts:sid-abs") {
		t.Fatal("expected expired record removed")
	}
	if ok, _ := mr.SIsMember("ts:p:30", "sid-abs"); ok {
		t.Fatal("expected index entry removed")
	}
}

func TestTouchSlidesButRespectsAbsoluteCap(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()
	rec := testRecord("sid-touch", 30)

	if err := store.Save(ctx, rec, time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Touch(ctx, rec, 30*time.Minute); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	if ttl := mr.TTL("ts:sid-touch"); ttl < 29*time.Minute {
		t.Fatalf("expected ttl renewed to ~30m, got %v", ttl)
	}

	rec.ExpiresAt = time.Now().Add(5 * time.Minute).Unix()
	if err := store.Touch(ctx, rec, 30*time.Minute); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	if ttl := mr.TTL("ts:sid-touch"); ttl > 5*time.Minute {
		t.Fatalf("expected ttl capped by absolute lifetime, got %v", ttl)
	}
}

func TestDeleteIsIdempotentAndClearsIndex(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	if err := store.Save(ctx, testRecord("sid-del", 30), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	existed, err := store.Delete(ctx, "sid-del")
	if err != nil || !existed {
		t.Fatalf("first delete: existed=%v err=%v", existed, err)
	}
	existed, err = store.Delete(ctx, "sid-del")
	if err != nil || existed {
		t.Fatalf("second delete: existed=%v err=%v", existed, err)
	}
	if ok, _ := mr.SIsMember("ts:p:30", "sid-del"); ok {
		t.Fatal("expected index entry removed")
	}
}

func TestPreAuthRecordIsNotIndexed(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	pre := &Record{ID: "pre-1", CSRF: csrf.State{Token: "t", IssuedAt: time.Now()}, CreatedAt: time.Now().Unix()}
	if pre.Authenticated() {
		t.Fatal("pre-auth record must not report authenticated")
	}
	if err := store.Save(ctx, pre, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if keys := mr.Keys(); len(keys) != 1 || keys[0] != "ts:pre-1" {
		t.Fatalf("expected only the record key, got %v", keys)
	}
	if err := store.Save(ctx, pre, 0); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
}

func TestDeleteAllForPrincipal(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Save(ctx, testRecord(id, 30), time.Hour); err != nil {
			t.Fatalf("Save %s failed: %v", id, err)
		}
	}
	if err := store.Save(ctx, testRecord("other", 31), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Delete(ctx, "c"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	live, err := store.PrincipalSessionIDs(ctx, 30)
	if err != nil || len(live) != 2 {
		t.Fatalf("expected two live sessions, got %v err=%v", live, err)
	}

	n, err := store.DeleteAllForPrincipal(ctx, 30)
	if err != nil {
		t.Fatalf("DeleteAllForPrincipal failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}
	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a deleted, got %v", err)
	}
	if _, err := store.Get(ctx, "other"); err != nil {
		t.Fatalf("expected other principal untouched, got %v", err)
	}
	if n, err := store.DeleteAllForPrincipal(ctx, 99); err != nil || n != 0 {
		t.Fatalf("expected no-op for unknown principal, got %d err=%v", n, err)
	}
}

func TestIndexTTLOnlyGrows(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	if err := store.Save(ctx, testRecord("long", 30), 720*time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, testRecord("short", 30), 30*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ttl := mr.TTL("ts:p:30"); ttl < 719*time.Hour {
		t.Fatalf("expected index ttl kept at remember-me lifetime, got %v", ttl)
	}
}

func TestStoreUnavailable(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	mr.Close()

	if err := store.Save(context.Background(), testRecord("x", 1), time.Hour); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.Get(context.Background(), "x"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
