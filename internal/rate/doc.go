// Package rate implements the login abuse counters used by the engine.
//
// # Window semantics
//
// Two independent fixed windows are kept per attempt: one keyed by the
// normalized account identifier and a stricter global one keyed by the
// source address. A window starts on its first hit and resets entirely once
// it elapses. Admit increments both counters before returning and never
// increments a counter that is already at its cap.
//
// Key layout (RedisLimiter):
//   - <prefix>:acct:<account> : per-account counter
//   - <prefix>:src:<source>   : per-source counter
//
// # What this package must NOT do
//
//   - Decide what a rejection means to the caller (audit, logging, messages).
//   - Be imported outside the portalauth module.
package rate
