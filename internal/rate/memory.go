package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a single-process limiter with the same window semantics
// as [RedisLimiter]. The clock is injectable for deterministic tests.
// Elapsed windows are swept from Admit at most once per window length.
type MemoryLimiter struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
	swept   time.Time
}

type window struct {
	count int
	start time.Time
}

// NewMemory creates an in-process limiter. A nil clock means time.Now.
func NewMemory(cfg Config, clock func() time.Time) (*MemoryLimiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	return &MemoryLimiter{
		config:  cfg,
		now:     clock,
		windows: make(map[string]*window),
		swept:   clock(),
	}, nil
}

// Admit counts one attempt against the account and source windows.
func (l *MemoryLimiter) Admit(_ context.Context, account, source string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.swept) >= l.config.Window {
		l.sweep(now)
	}
	acct := l.current("acct:"+NormalizeAccount(account), now)
	if acct.count >= l.config.MaxAccountAttempts {
		return Decision{Scope: ScopeAccount}, nil
	}

	var src *window
	if source != "" {
		src = l.current("src:"+source, now)
		if src.count >= l.config.MaxSourceAttempts {
			return Decision{Scope: ScopeSource}, nil
		}
	}

	acct.count++
	if src != nil {
		src.count++
	}
	return Decision{Allowed: true}, nil
}

// Reset clears both windows for the account/source pair.
func (l *MemoryLimiter) Reset(_ context.Context, account, source string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, "acct:"+NormalizeAccount(account))
	if source != "" {
		delete(l.windows, "src:"+source)
	}
	return nil
}

// Cleanup drops windows that have already elapsed.
func (l *MemoryLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(l.now())
}

// sweep drops elapsed windows. Caller holds l.mu.
func (l *MemoryLimiter) sweep(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.config.Window {
			delete(l.windows, key)
		}
	}
	l.swept = now
}

// WindowCount returns the number of tracked windows.
func (l *MemoryLimiter) WindowCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// current returns the live window for key, starting a new one when the
// previous window has elapsed. Caller holds l.mu.
func (l *MemoryLimiter) current(key string, now time.Time) *window {
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.config.Window {
		w = &window{start: now}
		l.windows[key] = w
	}
	return w
}
