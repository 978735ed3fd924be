package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/warmup-scheduler/internal/domain"
	"github.com/ignite/warmup-scheduler/internal/service/sending"
)

func TestIdentityRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewIdentityRegistry([]domain.Identity{{ID: "b", Active: true}, {ID: "a", Active: true, EmailsSentToday: 7}})

	ids, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "a", ids[0].ID)

	_, err = r.Get(ctx, "missing")
	assert.ErrorIs(t, err, sending.ErrIdentityNotFound)

	// The first increment of a day restarts today's counter.
	require.NoError(t, r.IncrementSent(ctx, "a", "2026-03-02"))
	require.NoError(t, r.IncrementSent(ctx, "a", "2026-03-02"))
	got, _ := r.Get(ctx, "a")
	assert.Equal(t, 2, got.EmailsSentToday)
	assert.Equal(t, 2, got.EmailsSentTotal)

	require.NoError(t, r.IncrementSent(ctx, "a", "2026-03-03"))
	got, _ = r.Get(ctx, "a")
	assert.Equal(t, 1, got.EmailsSentToday)
	assert.Equal(t, 3, got.EmailsSentTotal)
	assert.Equal(t, "2026-03-03", got.SentTodayDate)
	assert.Equal(t, 1, got.SentOn("2026-03-03"))
	assert.Zero(t, got.SentOn("2026-03-04"))

	at := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	require.NoError(t, r.RecordError(ctx, "b", at))
	got, _ = r.Get(ctx, "b")
	require.NotNil(t, got.LastError)
	assert.Equal(t, at, *got.LastError)

	assert.ErrorIs(t, r.IncrementSent(ctx, "zz", "2026-03-03"), sending.ErrIdentityNotFound)
	assert.ErrorIs(t, r.RecordError(ctx, "zz", at), sending.ErrIdentityNotFound)

	// Returned copies do not alias the registry.
	got.Active = false
	again, _ := r.Get(ctx, "b")
	assert.True(t, again.Active)
}
