// Package capacity tracks per-identity hourly and daily send counters.
//
// Counters live in a kvstore.Store under calendar-window keys:
//
//	ratelimit:<id>:hour:<YYYY-MM-DD-HH>   TTL 1h
//	ratelimit:<id>:day:<YYYY-MM-DD>       TTL 24h
//
// Keys are derived from the injected clock, so a new window starts a new
// counter and old ones expire on their own.
//
// CheckLimit followed by Record is not atomic: two callers can both pass
// the check before either increments, and the identity overshoots its cap
// by the number of racing callers. This is accepted. A caller that needs a
// hard ceiling must serialize its own sends per identity.
//
// Record is not idempotent either. The hour and day counters are bumped
// one after the other, so an error from the day window leaves the hour
// window already incremented, and retrying counts that send twice. Retries
// only ever over-count, which errs towards sending less.
package capacity

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/ignite/warmup-scheduler/internal/pkg/clock"
	"github.com/ignite/warmup-scheduler/internal/pkg/kvstore"
	"github.com/ignite/warmup-scheduler/internal/pkg/logger"
)

const (
	HourWindow = time.Hour
	DayWindow  = 24 * time.Hour

	// Unbounded is the remaining count reported for a window with no cap.
	Unbounded = math.MaxInt32
)

// Denial reasons.
const (
	ReasonHourlyLimit = "hourly_limit"
	ReasonDailyLimit  = "daily_limit"
)

// Usage is the send count in the current hour and day windows.
type Usage struct {
	Hourly int `json:"hourly"`
	Daily  int `json:"daily"`
}

// Decision is the outcome of a limit check. A denial is a value, not an
// error.
type Decision struct {
	Allowed        bool          `json:"allowed"`
	Reason         string        `json:"reason,omitempty"`
	Message        string        `json:"message,omitempty"`
	ResetIn        time.Duration `json:"-"`
	ResetSeconds   int           `json:"reset_seconds,omitempty"`
	Remaining      int           `json:"remaining"`
	DailyRemaining int           `json:"daily_remaining"`
	Usage          Usage         `json:"usage"`
}

// Tracker reads and writes the window counters.
type Tracker struct {
	kv    kvstore.Store
	clock clock.Clock
}

func NewTracker(kv kvstore.Store, clk clock.Clock) *Tracker {
	return &Tracker{kv: kv, clock: clk}
}

func hourKey(id string, now time.Time) string {
	return fmt.Sprintf("ratelimit:%s:hour:%s", id, clock.HourKey(now))
}

func dayKey(id string, now time.Time) string {
	return fmt.Sprintf("ratelimit:%s:day:%s", id, clock.DayKey(now))
}

// Usage reads both counters. A missing key counts as zero, and so does a
// backend failure: the error is logged and sending is not blocked on it.
func (t *Tracker) Usage(ctx context.Context, identityID string) Usage {
	now := t.clock.Now()
	return Usage{
		Hourly: t.read(ctx, hourKey(identityID, now)),
		Daily:  t.read(ctx, dayKey(identityID, now)),
	}
}

func (t *Tracker) read(ctx context.Context, key string) int {
	raw, found, err := t.kv.Get(ctx, key)
	if err != nil {
		logger.Warn("[Capacity] counter read failed, assuming zero", "key", key, "error", err)
		return 0
	}
	if !found {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		logger.Warn("[Capacity] counter is not numeric, assuming zero", "key", key, "value", raw)
		return 0
	}
	return n
}

// CheckLimit compares usage against the caps. A cap <= 0 means that window
// has no ceiling.
func (t *Tracker) CheckLimit(ctx context.Context, identityID string, hourlyCap, dailyCap int) Decision {
	now := t.clock.Now()
	u := t.Usage(ctx, identityID)
	d := Decision{
		Allowed:        true,
		Usage:          u,
		DailyRemaining: remaining(dailyCap, u.Daily),
	}
	d.Remaining = min(remaining(hourlyCap, u.Hourly), d.DailyRemaining)

	switch {
	case dailyCap > 0 && u.Daily >= dailyCap:
		d.deny(ReasonDailyLimit, clock.UntilMidnight(now),
			fmt.Sprintf("Daily limit of %d reached", dailyCap))
	case hourlyCap > 0 && u.Hourly >= hourlyCap:
		d.deny(ReasonHourlyLimit, clock.UntilNextHour(now),
			fmt.Sprintf("Hourly limit of %d reached", hourlyCap))
	}
	return d
}

func (d *Decision) deny(reason string, resetIn time.Duration, msg string) {
	d.Allowed = false
	d.Reason = reason
	d.ResetIn = resetIn
	d.ResetSeconds = int(math.Ceil(resetIn.Seconds()))
	d.Message = msg + ", " + ResetMessage(resetIn)
	d.Remaining = 0
}

// ResetMessage renders a reset estimate for operators: minutes below one
// hour, whole hours above.
func ResetMessage(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("resets in %d min", int(math.Ceil(d.Minutes())))
	}
	return fmt.Sprintf("resets in %d h", int(math.Ceil(d.Hours())))
}

func remaining(limit, used int) int {
	if limit <= 0 {
		return Unbounded
	}
	if r := limit - used; r > 0 {
		return r
	}
	return 0
}

// Record counts one send in both windows and refreshes their expiry. Errors
// are returned so the caller can retry the increment.
func (t *Tracker) Record(ctx context.Context, identityID string) error {
	now := t.clock.Now()
	for _, w := range []struct {
		key string
		ttl time.Duration
	}{
		{hourKey(identityID, now), HourWindow},
		{dayKey(identityID, now), DayWindow},
	} {
		if _, err := t.kv.Incr(ctx, w.key); err != nil {
			logger.Error("[Capacity] increment failed", "key", w.key, "error", err)
			return fmt.Errorf("recording send for %s: %w", identityID, err)
		}
		if err := t.kv.Expire(ctx, w.key, w.ttl); err != nil {
			logger.Error("[Capacity] expire failed", "key", w.key, "error", err)
			return fmt.Errorf("setting expiry for %s: %w", identityID, err)
		}
	}
	return nil
}

// Reset clears both current-window counters.
func (t *Tracker) Reset(ctx context.Context, identityID string) error {
	now := t.clock.Now()
	if err := t.kv.Del(ctx, hourKey(identityID, now), dayKey(identityID, now)); err != nil {
		return fmt.Errorf("resetting counters for %s: %w", identityID, err)
	}
	logger.Info("[Capacity] counters reset", "identity", identityID)
	return nil
}
