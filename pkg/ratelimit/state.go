// Package ratelimit gates outbound user API requests with a fixed-window
// counter kept in Redis, so several console instances share one budget.
// The listing fetches on every filter keystroke; the gate is what keeps a
// burst of typing from flooding the user API.
package ratelimit

import (
	"fmt"
	"time"
)

// RedisKeyPrefix prefixes the per-window counter keys.
const RedisKeyPrefix = "users:gate:"

// Window is the length of one counting window.
const Window = time.Second

// WarningRatio is the share of the limit above which requests are throttled.
const WarningRatio = 0.8

// State is the gate's view of the current window.
type State struct {
	// RequestsInWindow counts requests admitted or attempted in this window.
	RequestsInWindow int `json:"requests_in_window"`

	// Limit is the maximum number of requests per window.
	Limit int `json:"limit"`

	// WindowResetAt is when the current window ends.
	WindowResetAt time.Time `json:"window_reset_at"`
}

// NeedsBlock reports whether the window's budget is exhausted.
func (s *State) NeedsBlock() bool {
	return s.Limit > 0 && s.RequestsInWindow > s.Limit
}

// NeedsThrottling reports whether the window is in the warning band.
func (s *State) NeedsThrottling() bool {
	if s.Limit <= 0 || s.NeedsBlock() {
		return false
	}
	return float64(s.RequestsInWindow) >= float64(s.Limit)*WarningRatio
}

// TimeUntilReset returns the time left in the window, or 0.
func (s *State) TimeUntilReset() time.Duration {
	d := time.Until(s.WindowResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// windowKey returns the counter key for the window containing t.
func windowKey(t time.Time) string {
	return fmt.Sprintf("%s%d", RedisKeyPrefix, t.Unix())
}

// windowEnd returns the end of the window containing t.
func windowEnd(t time.Time) time.Time {
	return t.Truncate(Window).Add(Window)
}
