package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	gateRequestsInWindow = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "user_api_gate_requests_in_window",
		Help: "Requests counted in the current gate window",
	})

	gateBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "user_api_gate_blocks_total",
		Help: "Total number of user API requests blocked by the gate",
	})

	gateThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "user_api_gate_throttles_total",
		Help: "Total number of user API requests delayed by the gate",
	})
)

// ThrottleDelay is how long a request in the warning band is held back.
var ThrottleDelay = 100 * time.Millisecond

// Tracker counts outbound requests per window and decides whether to admit them.
type Tracker struct {
	redis  *redis.Client
	limit  int
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a gate admitting limit requests per Window.
// A limit <= 0 admits everything without touching Redis.
func NewTracker(redisClient *redis.Client, limit int, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		limit:  limit,
		logger: logger,
		now:    time.Now,
	}
}

// Enabled reports whether the gate enforces a limit.
func (t *Tracker) Enabled() bool {
	return t != nil && t.redis != nil && t.limit > 0
}

// GetState reads the current window without counting a request.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	now := t.now()
	state := &State{Limit: t.limit, WindowResetAt: windowEnd(now)}
	if !t.Enabled() {
		return state, nil
	}

	count, err := t.redis.Get(ctx, windowKey(now)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get window counter: %w", err)
	}
	state.RequestsInWindow = count

	return state, nil
}

// ShouldAllowRequest counts one request and reports whether it may proceed.
// Requests in the warning band are delayed by ThrottleDelay before admission.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	if !t.Enabled() {
		return true, nil
	}

	now := t.now()
	key := windowKey(now)

	pipe := t.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("count request in window: %w", err)
	}

	state := &State{
		RequestsInWindow: int(incr.Val()),
		Limit:            t.limit,
		WindowResetAt:    windowEnd(now),
	}
	gateRequestsInWindow.Set(float64(state.RequestsInWindow))

	if state.NeedsBlock() {
		t.logger.Warn().
			Int("requests_in_window", state.RequestsInWindow).
			Int("limit", state.Limit).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("User API request budget exhausted - blocking request")
		gateBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Debug().
			Int("requests_in_window", state.RequestsInWindow).
			Int("limit", state.Limit).
			Msg("User API request budget low - throttling request")
		gateThrottlesTotal.Inc()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(ThrottleDelay):
		}
	}

	return true, nil
}
