package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Scope names the window that rejected an attempt.
type Scope string

const (
	// ScopeNone is reported for admitted attempts.
	ScopeNone Scope = ""
	// ScopeAccount is the per-account window.
	ScopeAccount Scope = "account"
	// ScopeSource is the per-source window.
	ScopeSource Scope = "source"
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxAccountAttempts int
	MaxSourceAttempts  int
	Window             time.Duration
	Prefix             string
}

// Decision is the outcome of a single Admit call.
type Decision struct {
	Allowed bool
	Scope   Scope
}

func (c Config) validate() error {
	if c.MaxAccountAttempts <= 0 || c.MaxSourceAttempts <= 0 {
		return fmt.Errorf("%w: attempt caps must be > 0", ErrInvalidConfig)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be > 0", ErrInvalidConfig)
	}
	return nil
}

// admitScript checks every key against its cap before touching any of them,
// so a rejected attempt never grows a counter.
//
// KEYS: account key, optional source key
// ARGV: account cap, source cap, window in ms
// Returns 0 when admitted, otherwise the 1-based index of the capped key.
const admitScript = `
local caps = { tonumber(ARGV[1]), tonumber(ARGV[2]) }
for i = 1, #KEYS do
  local count = tonumber(redis.call("GET", KEYS[i]) or "0")
  if count >= caps[i] then
    return i
  end
end
for i = 1, #KEYS do
  local count = redis.call("INCR", KEYS[i])
  if count == 1 then
    redis.call("PEXPIRE", KEYS[i], ARGV[3])
  end
end
return 0
`

var admitLua = redis.NewScript(admitScript)

// RedisLimiter keeps both windows in Redis so every instance behind a load
// balancer shares the same counters.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [RedisLimiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) (*RedisLimiter, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("%w: redis client is required", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "pa:rl"
	}
	return &RedisLimiter{
		redis:  redisClient,
		config: cfg,
	}, nil
}

// Admit counts one attempt against the account and source windows.
// An empty source skips the per-source window.
func (l *RedisLimiter) Admit(ctx context.Context, account, source string) (Decision, error) {
	keys := l.keys(account, source)
	window := l.config.Window.Milliseconds()
	if window < 1 {
		window = 1
	}

	res, err := admitLua.Run(ctx, l.redis, keys,
		l.config.MaxAccountAttempts,
		l.config.MaxSourceAttempts,
		window,
	).Int64()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch res {
	case 0:
		return Decision{Allowed: true}, nil
	case 1:
		return Decision{Scope: ScopeAccount}, nil
	default:
		return Decision{Scope: ScopeSource}, nil
	}
}

// Reset clears both windows for the account/source pair.
func (l *RedisLimiter) Reset(ctx context.Context, account, source string) error {
	if err := l.redis.Del(ctx, l.keys(account, source)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Attempts returns the current per-account count. Missing keys read as zero.
func (l *RedisLimiter) Attempts(ctx context.Context, account string) (int, error) {
	count, err := l.redis.Get(ctx, l.accountKey(account)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

func (l *RedisLimiter) keys(account, source string) []string {
	keys := []string{l.accountKey(account)}
	if source != "" {
		keys = append(keys, l.sourceKey(source))
	}
	return keys
}

func (l *RedisLimiter) accountKey(account string) string {
	return l.config.Prefix + ":acct:" + NormalizeAccount(account)
}

func (l *RedisLimiter) sourceKey(source string) string {
	return l.config.Prefix + ":src:" + source
}

// NormalizeAccount folds an identifier to the key used by both limiters.
func NormalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}
