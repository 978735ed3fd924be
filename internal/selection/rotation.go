package selection

import (
	"context"

	"github.com/ignite/warmup-scheduler/internal/capacity"
	"github.com/ignite/warmup-scheduler/internal/domain"
)

// IdentityState is the rotation view of one identity.
type IdentityState struct {
	IdentityID     string              `json:"identity_id"`
	Provider       string              `json:"provider"`
	Active         bool                `json:"active"`
	Status         domain.WarmupStatus `json:"status"`
	HealthScore    int                 `json:"health_score"`
	Usage          capacity.Usage      `json:"usage"`
	Allowed        bool                `json:"allowed"`
	Reason         string              `json:"reason,omitempty"`
	Message        string              `json:"message,omitempty"`
	Remaining      int                 `json:"remaining"`
	DailyRemaining int                 `json:"daily_remaining"`
	Score          float64             `json:"score"`
}

// RotationStatus summarizes the pool.
type RotationStatus struct {
	Identities     []IdentityState `json:"identities"`
	Total          int             `json:"total"`
	Active         int             `json:"active"`
	Available      int             `json:"available"`
	TotalRemaining int64           `json:"total_remaining"`
	Cursor         int             `json:"cursor"`
}

// RotationStatus evaluates every identity, inactive ones included, without
// changing any state.
func (e *Engine) RotationStatus(ctx context.Context, ids []domain.Identity) (*RotationStatus, error) {
	cands, err := e.evaluate(ctx, ids)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	rs := &RotationStatus{Total: len(ids), Cursor: e.cursor, Identities: make([]IdentityState, 0, len(cands))}
	e.mu.Unlock()

	for _, c := range cands {
		allowed := c.Identity.Active && c.Decision.Allowed
		st := IdentityState{
			IdentityID:     c.Identity.ID,
			Provider:       c.Provider.Name,
			Active:         c.Identity.Active,
			Status:         c.Status,
			HealthScore:    c.HealthScore,
			Usage:          c.Decision.Usage,
			Allowed:        allowed,
			Reason:         c.Decision.Reason,
			Message:        c.Decision.Message,
			Remaining:      c.Decision.Remaining,
			DailyRemaining: c.Decision.DailyRemaining,
			Score:          c.Score,
		}
		if !c.Identity.Active {
			st.Reason = "inactive"
		}
		if c.Identity.Active {
			rs.Active++
		}
		if allowed {
			rs.Available++
			rs.TotalRemaining += int64(c.Decision.DailyRemaining)
		}
		rs.Identities = append(rs.Identities, st)
	}
	return rs, nil
}
