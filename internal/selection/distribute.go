package selection

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/ignite/warmup-scheduler/internal/domain"
	"github.com/ignite/warmup-scheduler/internal/pkg/logger"
)

// Job is one outbound unit of work. The engine only looks at its ID.
type Job struct {
	ID   string            `json:"id"`
	Meta map[string]string `json:"meta,omitempty"`
}

// BatchSummary reports one identity's share of a batch.
type BatchSummary struct {
	IdentityID      string `json:"identity_id"`
	Assigned        int    `json:"assigned"`
	RemainingBefore int    `json:"remaining_before"`
	RemainingAfter  int    `json:"remaining_after"`
}

// Batches is the result of Distribute.
type Batches struct {
	ID            string           `json:"id"`
	Assignments   map[string][]Job `json:"assignments"`
	Summary       []BatchSummary   `json:"summary"`
	TotalJobs     int              `json:"total_jobs"`
	TotalCapacity int64            `json:"total_capacity"`
}

// Distribute assigns every job to an eligible identity. It fails up front
// with insufficient_capacity when the pool cannot absorb the whole batch;
// nothing is dropped silently. Each job goes to the identity with the most
// remaining daily capacity after the assignments made so far.
func (e *Engine) Distribute(ctx context.Context, jobs []Job, ids []domain.Identity) (*Batches, error) {
	if len(ids) == 0 {
		return nil, ErrNoAccounts
	}

	var pool []domain.Identity
	for _, id := range ids {
		if id.Active {
			pool = append(pool, id)
		}
	}
	cands, err := e.evaluate(ctx, pool)
	if err != nil {
		return nil, err
	}

	var eligible []Candidate
	var total int64
	for _, c := range cands {
		if c.Decision.Allowed && c.Decision.DailyRemaining > 0 {
			eligible = append(eligible, c)
			total += int64(c.Decision.DailyRemaining)
		}
	}
	if total < int64(len(jobs)) {
		return nil, fail(ErrInsufficientCapacity,
			fmt.Sprintf("Capacity %d is less than %d jobs", total, len(jobs)))
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Identity.ID < eligible[j].Identity.ID })

	remaining := make([]int, len(eligible))
	for i, c := range eligible {
		remaining[i] = c.Decision.DailyRemaining
	}

	b := &Batches{
		ID:            uuid.NewString(),
		Assignments:   make(map[string][]Job),
		TotalJobs:     len(jobs),
		TotalCapacity: total,
	}
	for _, job := range jobs {
		best := 0
		for i := 1; i < len(remaining); i++ {
			if remaining[i] > remaining[best] {
				best = i
			}
		}
		id := eligible[best].Identity.ID
		b.Assignments[id] = append(b.Assignments[id], job)
		remaining[best]--
	}

	for i, c := range eligible {
		n := len(b.Assignments[c.Identity.ID])
		if n == 0 {
			continue
		}
		b.Summary = append(b.Summary, BatchSummary{
			IdentityID:      c.Identity.ID,
			Assigned:        n,
			RemainingBefore: c.Decision.DailyRemaining,
			RemainingAfter:  remaining[i],
		})
	}
	logger.Info("[Selection] batch distributed", "batch", b.ID, "jobs", len(jobs), "identities", len(b.Summary))
	return b, nil
}
