package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when no record exists for a session id.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned when a record outlived its absolute lifetime.
	ErrExpired = errors.New("session expired")
	// ErrCorrupt is returned when a stored record cannot be decoded.
	ErrCorrupt = errors.New("session record corrupt")
	// ErrStoreUnavailable wraps Redis transport failures.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrInvalidTTL is returned when a record would be saved without a lifetime.
	ErrInvalidTTL = errors.New("session ttl must be positive")
)

const defaultPrefix = "pa:sess"

const saveSessionScript = `
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
if #KEYS > 1 then
  redis.call("SADD", KEYS[2], ARGV[3])
  local current = redis.call("PTTL", KEYS[2])
  if current < tonumber(ARGV[2]) then
    redis.call("PEXPIRE", KEYS[2], ARGV[2])
  end
end
return 1
`

const deleteSessionScript = `
local existed = redis.call("DEL", KEYS[1])
if #KEYS > 1 then
  redis.call("SREM", KEYS[2], ARGV[1])
end
return existed
`

var (
	saveSessionLua   = redis.NewScript(saveSessionScript)
	deleteSessionLua = redis.NewScript(deleteSessionScript)
)

// Store is a Redis-backed record store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a [Store] using prefix as the key namespace. An empty
// prefix selects "pa:sess".
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{redis: rdb, prefix: prefix, now: time.Now}
}

// WithClock returns a copy of s that reads time from now.
func (s *Store) WithClock(now func() time.Time) *Store {
	cp := *s
	cp.now = now
	return &cp
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) principalKey(principalID int64) string {
	return s.prefix + ":p:" + strconv.FormatInt(principalID, 10)
}

// Save writes r under r.ID with the given TTL. Authenticated records are
// also added to their principal's index.
func (s *Store) Save(ctx context.Context, r *Record, ttl time.Duration) error {
	if r == nil || r.ID == "" {
		return errors.New("session record requires an id")
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	data, err := Encode(r)
	if err != nil {
		return err
	}

	keys := []string{s.key(r.ID)}
	if r.Authenticated() {
		keys = append(keys, s.principalKey(r.PrincipalID))
	}
	if err := saveSessionLua.Run(ctx, s.redis, keys, data, ttl.Milliseconds(), r.ID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get loads the record for sessionID. A record past its absolute lifetime
// is deleted and reported as [ErrExpired].
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	r, err := Decode(data)
	if err != nil {
		return nil, err
	}
	r.ID = sessionID

	if r.Expired(s.now()) {
		if err := s.deleteRecord(ctx, r); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	return r, nil
}

// Touch renews the record's TTL to idle, capped by its absolute lifetime.
func (s *Store) Touch(ctx context.Context, r *Record, idle time.Duration) error {
	ttl := idle
	if r.ExpiresAt > 0 {
		remaining := time.Unix(r.ExpiresAt, 0).Sub(s.now())
		if remaining < ttl {
			ttl = remaining
		}
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := s.redis.PExpire(ctx, s.key(r.ID), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes the record for sessionID and reports whether it existed.
// Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	r, err := Decode(data)
	if err != nil {
		// Unreadable records are still removed; only the index entry is lost.
		r = &Record{}
	}
	r.ID = sessionID
	if err := s.deleteRecord(ctx, r); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) deleteRecord(ctx context.Context, r *Record) error {
	keys := []string{s.key(r.ID)}
	if r.Authenticated() {
		keys = append(keys, s.principalKey(r.PrincipalID))
	}
	if err := deleteSessionLua.Run(ctx, s.redis, keys, r.ID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteAllForPrincipal removes every indexed record of principalID and the
// index itself, returning how many records were deleted.
//
// The set is read before deletion, so a record saved concurrently with this
// call may survive it.
func (s *Store) DeleteAllForPrincipal(ctx context.Context, principalID int64) (int, error) {
	indexKey := s.principalKey(principalID)

	ids, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, indexKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

// PrincipalSessionIDs lists the indexed session ids of principalID whose
// records still exist.
func (s *Store) PrincipalSessionIDs(ctx context.Context, principalID int64) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.principalKey(principalID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	exists := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		exists[i] = pipe.Exists(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	live := make([]string, 0, len(ids))
	for i, cmd := range exists {
		if cmd.Val() == 1 {
			live = append(live, ids[i])
		}
	}
	return live, nil
}
