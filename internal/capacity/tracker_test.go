package capacity

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/warmup-scheduler/internal/pkg/clock"
	"github.com/ignite/warmup-scheduler/internal/pkg/kvstore"
)

var t0 = time.Date(2026, 3, 2, 22, 48, 0, 0, time.UTC)

func newTestTracker() (*Tracker, *clock.Mock) {
	clk := clock.NewMock(t0)
	return NewTracker(kvstore.NewMemoryStore(clk), clk), clk
}

func TestTracker_UsageStartsAtZero(t *testing.T) {
	tr, _ := newTestTracker()
	assert.Equal(t, Usage{}, tr.Usage(context.Background(), "id-1"))
}

func TestTracker_RecordAndWindows(t *testing.T) {
	ctx := context.Background()
	tr, clk := newTestTracker()

	for i := 0; i < 3; i++ {
		require.NoError(t, tr.Record(ctx, "id-1"))
	}
	assert.Equal(t, Usage{Hourly: 3, Daily: 3}, tr.Usage(ctx, "id-1"))
	assert.Equal(t, Usage{}, tr.Usage(ctx, "id-2"))

	// 23:05 is a new hour, same day.
	clk.Advance(17 * time.Minute)
	require.NoError(t, tr.Record(ctx, "id-1"))
	assert.Equal(t, Usage{Hourly: 1, Daily: 4}, tr.Usage(ctx, "id-1"))

	// 00:05 next day starts both windows over.
	clk.Advance(time.Hour)
	assert.Equal(t, Usage{}, tr.Usage(ctx, "id-1"))
}

func TestTracker_CheckLimit(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker()

	d := tr.CheckLimit(ctx, "id-1", 2, 10)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
	assert.Equal(t, 10, d.DailyRemaining)

	require.NoError(t, tr.Record(ctx, "id-1"))
	require.NoError(t, tr.Record(ctx, "id-1"))

	d = tr.CheckLimit(ctx, "id-1", 2, 10)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonHourlyLimit, d.Reason)
	assert.Equal(t, 12*time.Minute, d.ResetIn)
	assert.Equal(t, 720, d.ResetSeconds)
	assert.Contains(t, d.Message, "resets in 12 min")
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 8, d.DailyRemaining)

	d = tr.CheckLimit(ctx, "id-1", 5, 2)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonDailyLimit, d.Reason)
	assert.Equal(t, 72*time.Minute, d.ResetIn)
	assert.Contains(t, d.Message, "resets in 2 h")
}

func TestTracker_CheckLimitWithoutCaps(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker()
	for i := 0; i < 5; i++ {
		require.NoError(t, tr.Record(ctx, "id-1"))
	}
	d := tr.CheckLimit(ctx, "id-1", 0, 0)
	assert.True(t, d.Allowed)
	assert.Equal(t, Unbounded, d.Remaining)
	assert.Equal(t, Unbounded, d.DailyRemaining)
}

func TestTracker_Reset(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker()
	require.NoError(t, tr.Record(ctx, "id-1"))
	require.NoError(t, tr.Reset(ctx, "id-1"))
	assert.Equal(t, Usage{}, tr.Usage(ctx, "id-1"))
}

func TestResetMessage(t *testing.T) {
	assert.Equal(t, "resets in 1 min", ResetMessage(10*time.Second))
	assert.Equal(t, "resets in 59 min", ResetMessage(59*time.Minute))
	assert.Equal(t, "resets in 5 h", ResetMessage(4*time.Hour+10*time.Minute))
}

func TestTracker_RedisKeysAndTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	tr := NewTracker(kvstore.NewRedisStore(client), clock.NewMock(t0))
	require.NoError(t, tr.Record(ctx, "id-1"))
	require.NoError(t, tr.Record(ctx, "id-1"))

	v, err := mr.Get("ratelimit:id-1:hour:2026-03-02-22")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
	assert.Equal(t, time.Hour, mr.TTL("ratelimit:id-1:hour:2026-03-02-22"))
	assert.Equal(t, 24*time.Hour, mr.TTL("ratelimit:id-1:day:2026-03-02"))

	mr.FastForward(time.Hour)
	assert.False(t, mr.Exists("ratelimit:id-1:hour:2026-03-02-22"))
	assert.True(t, mr.Exists("ratelimit:id-1:day:2026-03-02"))
}

// failingStore simulates an unreachable backend.
type failingStore struct{}

var errDown = fmt.Errorf("%w: connection refused", kvstore.ErrUnavailable)

func (failingStore) Get(context.Context, string) (string, bool, error)        { return "", false, errDown }
func (failingStore) Set(context.Context, string, string, time.Duration) error { return errDown }
func (failingStore) Del(context.Context, ...string) error                     { return errDown }
func (failingStore) Incr(context.Context, string) (int64, error)              { return 0, errDown }
func (failingStore) Expire(context.Context, string, time.Duration) error      { return errDown }
func (failingStore) Keys(context.Context, string) ([]string, error)           { return nil, errDown }

func TestTracker_BackendFailure(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(failingStore{}, clock.NewMock(t0))

	// Reads are optimistic.
	d := tr.CheckLimit(ctx, "id-1", 1, 1)
	assert.True(t, d.Allowed)
	assert.Equal(t, Usage{}, d.Usage)

	// Writes surface the failure, distinct from a limit denial.
	err := tr.Record(ctx, "id-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, kvstore.ErrUnavailable))
	assert.ErrorIs(t, tr.Reset(ctx, "id-1"), kvstore.ErrUnavailable)
}

// flakyDayStore fails the first day-window increment and passes everything
// else through.
type flakyDayStore struct {
	kvstore.Store
	failed bool
}

func (s *flakyDayStore) Incr(ctx context.Context, key string) (int64, error) {
	if !s.failed && key == dayKey("id-1", t0) {
		s.failed = true
		return 0, errDown
	}
	return s.Store.Incr(ctx, key)
}

func TestTracker_RetryAfterPartialRecordOverCounts(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock(t0)
	tr := NewTracker(&flakyDayStore{Store: kvstore.NewMemoryStore(clk)}, clk)

	err := tr.Record(ctx, "id-1")
	require.ErrorIs(t, err, kvstore.ErrUnavailable)
	assert.Equal(t, Usage{Hourly: 1, Daily: 0}, tr.Usage(ctx, "id-1"))

	require.NoError(t, tr.Record(ctx, "id-1"))
	assert.Equal(t, Usage{Hourly: 2, Daily: 1}, tr.Usage(ctx, "id-1"))
}
