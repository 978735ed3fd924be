// Package selection picks sending identities and spreads batches over them.
//
// The engine never caches identity state. Every call re-runs the Gate for
// each candidate right before deciding, which narrows, but does not close,
// the window in which a concurrent sender can push an identity past its cap.
package selection

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/warmup-scheduler/internal/capacity"
	"github.com/ignite/warmup-scheduler/internal/domain"
	"github.com/ignite/warmup-scheduler/internal/health"
	"github.com/ignite/warmup-scheduler/internal/pkg/clock"
	"github.com/ignite/warmup-scheduler/internal/pkg/logger"
)

// Gate decides whether an identity may send right now.
type Gate interface {
	Check(ctx context.Context, id domain.Identity) (capacity.Decision, error)
}

// Mode is a selection strategy.
type Mode string

const (
	ModeAuto       Mode = "auto"
	ModePriority   Mode = "priority"
	ModeBalanced   Mode = "balanced"
	ModeRoundRobin Mode = "round_robin"
)

// Valid reports whether m is a known mode. The empty mode means auto.
func (m Mode) Valid() bool {
	switch m {
	case "", ModeAuto, ModePriority, ModeBalanced, ModeRoundRobin:
		return true
	}
	return false
}

// Options narrow a SelectBest call.
type Options struct {
	Mode       Mode     `json:"mode"`
	ExcludeIDs []string `json:"exclude_ids,omitempty"`
	Count      int      `json:"count"`
}

// Candidate is an identity with everything the engine derived for it.
type Candidate struct {
	Identity    domain.Identity
	Provider    domain.Provider
	Status      domain.WarmupStatus
	HealthScore int
	Decision    capacity.Decision
	Score       float64
	EvaluatedAt time.Time
}

// Choice is one selected identity as reported to the caller.
type Choice struct {
	IdentityID  string              `json:"identity_id"`
	Score       float64             `json:"score"`
	Status      domain.WarmupStatus `json:"status"`
	HealthScore int                 `json:"health_score"`
	Remaining   int                 `json:"remaining"`
}

// Selection is the result of SelectBest.
type Selection struct {
	Mode       Mode     `json:"mode"`
	Selected   []Choice `json:"selected"`
	Considered int      `json:"considered"`
	Eligible   int      `json:"eligible"`
}

// Engine scores, selects and distributes. The round-robin cursor lives
// for the lifetime of the Engine.
type Engine struct {
	gate        Gate
	clock       clock.Clock
	concurrency int

	mu     sync.Mutex
	cursor int
}

// NewEngine creates an Engine. concurrency bounds parallel gate checks.
func NewEngine(gate Gate, clk clock.Clock, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Engine{gate: gate, clock: clk, concurrency: concurrency}
}

// Score is the weighted desirability of a candidate.
func Score(c Candidate) float64 {
	s := float64(health.StatusWeight(c.Status))

	if daily := health.Caps(c.Identity, c.Provider).Daily; daily > 0 {
		frac := float64(c.Decision.DailyRemaining) / float64(daily)
		if frac > 1 {
			frac = 1
		}
		if frac < 0 {
			frac = 0
		}
		s += frac * 50
	}

	s += float64(c.HealthScore) / 100 * 30
	if c.Identity.Active {
		s += 20
	}

	switch {
	case c.Identity.ErrorWithin(c.EvaluatedAt, 24*time.Hour):
		s -= 30
	case c.Identity.ErrorWithin(c.EvaluatedAt, 72*time.Hour):
		s -= 15
	}
	return s
}

// evaluate runs the gate for every identity in parallel and derives the
// classifier values. Identities whose gate errors are logged and returned
// with a denied decision.
func (e *Engine) evaluate(ctx context.Context, ids []domain.Identity) ([]Candidate, error) {
	now := e.clock.Now()
	today := clock.DayKey(now)
	out := make([]Candidate, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range ids {
		g.Go(func() error {
			id := ids[i]
			d, err := e.gate.Check(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("[Selection] gate check failed", "identity", id.ID, "error", err)
				d = capacity.Decision{Allowed: false, Reason: "gate_error", Message: err.Error()}
			}
			id.EmailsSentToday = max(id.SentOn(today), d.Usage.Daily)
			id.SentTodayDate = today
			p := health.DetectProvider(id.Host)
			c := Candidate{
				Identity:    id,
				Provider:    p,
				Status:      health.Status(id, now),
				HealthScore: health.Score(id, p, now),
				Decision:    d,
				EvaluatedAt: now,
			}
			c.Score = Score(c)
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c Candidate) choice() Choice {
	return Choice{
		IdentityID:  c.Identity.ID,
		Score:       c.Score,
		Status:      c.Status,
		HealthScore: c.HealthScore,
		Remaining:   c.Decision.DailyRemaining,
	}
}

// SelectBest picks up to opts.Count identities that are active, not
// excluded and currently allowed by the gate.
func (e *Engine) SelectBest(ctx context.Context, ids []domain.Identity, opts Options) (*Selection, error) {
	if len(ids) == 0 {
		return nil, ErrNoAccounts
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeAuto
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown selection mode %q", opts.Mode)
	}

	excluded := make(map[string]struct{}, len(opts.ExcludeIDs))
	for _, id := range opts.ExcludeIDs {
		excluded[id] = struct{}{}
	}
	var pool []domain.Identity
	active := 0
	for _, id := range ids {
		if !id.Active {
			continue
		}
		active++
		if _, skip := excluded[id.ID]; skip {
			continue
		}
		pool = append(pool, id)
	}

	cands, err := e.evaluate(ctx, pool)
	if err != nil {
		return nil, err
	}
	survivors := cands[:0]
	for _, c := range cands {
		if c.Decision.Allowed {
			survivors = append(survivors, c)
		}
	}
	if len(survivors) == 0 {
		switch {
		case active == 0:
			return nil, fail(ErrNoCapacity, "No active accounts")
		case len(pool) == 0:
			return nil, fail(ErrNoCapacity, "All active accounts are excluded")
		default:
			return nil, fail(ErrNoCapacity, "All accounts at limit")
		}
	}

	count := opts.Count
	if count <= 0 {
		count = 1
	}
	if count > len(survivors) {
		count = len(survivors)
	}

	var picked []Candidate
	if mode == ModeRoundRobin {
		picked = e.rotate(survivors, count)
	} else {
		order(survivors, mode)
		picked = survivors[:count]
	}

	sel := &Selection{Mode: mode, Considered: len(ids), Eligible: len(survivors)}
	for _, c := range picked {
		sel.Selected = append(sel.Selected, c.choice())
	}
	logger.Debug("[Selection] selected", "mode", string(mode), "eligible", len(survivors), "first", sel.Selected[0].IdentityID)
	return sel, nil
}

// order sorts candidates best-first for the given mode. Ties fall back to
// score and then id so results are deterministic.
func order(cands []Candidate, mode Mode) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		switch mode {
		case ModePriority:
			if a.Status.Rank() != b.Status.Rank() {
				return a.Status.Rank() > b.Status.Rank()
			}
		case ModeBalanced:
			if a.Decision.DailyRemaining != b.Decision.DailyRemaining {
				return a.Decision.DailyRemaining > b.Decision.DailyRemaining
			}
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Identity.ID < b.Identity.ID
	})
}

// rotate takes count candidates starting at the cursor, over survivors in
// id order, and advances the cursor past them.
func (e *Engine) rotate(cands []Candidate, count int) []Candidate {
	sort.Slice(cands, func(i, j int) bool { return cands[i].Identity.ID < cands[j].Identity.ID })

	e.mu.Lock()
	start := e.cursor % len(cands)
	e.cursor = (start + count) % len(cands)
	e.mu.Unlock()

	out := make([]Candidate, 0, count)
	for k := 0; k < count; k++ {
		out = append(out, cands[(start+k)%len(cands)])
	}
	return out
}
