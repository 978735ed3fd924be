package sending

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/warmup-scheduler/internal/capacity"
	"github.com/ignite/warmup-scheduler/internal/domain"
	"github.com/ignite/warmup-scheduler/internal/health"
	"github.com/ignite/warmup-scheduler/internal/pkg/clock"
	"github.com/ignite/warmup-scheduler/internal/pkg/kvstore"
	"github.com/ignite/warmup-scheduler/internal/pkg/logger"
	"github.com/ignite/warmup-scheduler/internal/selection"
	"github.com/ignite/warmup-scheduler/internal/warmup"
)

// Verdict is the answer to CanSend.
type Verdict struct {
	Allowed      bool   `json:"allowed"`
	Remaining    int    `json:"remaining"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message,omitempty"`
	ResetSeconds int    `json:"reset_seconds,omitempty"`
}

// Service implements the scheduler's caller-facing operations. All public
// methods are safe for concurrent use if the registry and store are.
type Service struct {
	registry Registry
	tracker  *capacity.Tracker
	warmups  *warmup.Store
	engine   *selection.Engine
	clock    clock.Clock
	metrics  Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics reports decisions and sends to m.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService wires the service and an engine that uses it as its gate.
// concurrency bounds parallel gate checks during selection.
func NewService(registry Registry, tracker *capacity.Tracker, warmups *warmup.Store, clk clock.Clock, concurrency int, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		tracker:  tracker,
		warmups:  warmups,
		clock:    clk,
		metrics:  noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = selection.NewEngine(s, clk, concurrency)
	return s
}

// Check is the combined warm-up and rate-limit gate for one identity.
func (s *Service) Check(ctx context.Context, id domain.Identity) (capacity.Decision, error) {
	if !id.Active {
		return capacity.Decision{Allowed: false, Reason: ReasonInactive, Message: "Identity is inactive"}, nil
	}
	now := s.clock.Now()

	rec, err := s.warmups.Get(ctx, id.ID)
	switch {
	case errors.Is(err, warmup.ErrNotInitialized):
		rec = nil
	case errors.Is(err, kvstore.ErrUnavailable):
		logger.Warn("[Sending] warm-up record unavailable, skipping warm-up gate", "identity", id.ID, "error", err)
		rec = nil
	case err != nil:
		return capacity.Decision{}, err
	}

	if rec != nil && rec.Enabled {
		if rec.IsPaused {
			return capacity.Decision{Allowed: false, Reason: ReasonWarmupPaused, Message: "Warm-up paused"}, nil
		}
		if !rec.DailyLimit.Unbounded() && rec.TodaySent >= int(rec.DailyLimit) {
			resetIn := clock.UntilMidnight(now)
			return capacity.Decision{
				Allowed:      false,
				Reason:       ReasonWarmupLimit,
				ResetIn:      resetIn,
				ResetSeconds: int(resetIn.Seconds()),
				Message: fmt.Sprintf("Warm-up limit of %d reached (%d sent today), %s",
					rec.DailyLimit, rec.TodaySent, capacity.ResetMessage(resetIn)),
			}, nil
		}
	}

	caps := health.Caps(id, health.DetectProvider(id.Host))
	d := s.tracker.CheckLimit(ctx, id.ID, caps.Hourly, caps.Daily)
	if rec != nil && rec.Enabled {
		left := rec.DailyLimit.Remaining(rec.TodaySent)
		d.DailyRemaining = min(d.DailyRemaining, left)
		d.Remaining = min(d.Remaining, left)
	}
	return d, nil
}

// CanSend reports whether the identity may send now and how much it has
// left.
func (s *Service) CanSend(ctx context.Context, identityID string) (*Verdict, error) {
	id, err := s.registry.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}
	d, err := s.Check(ctx, *id)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveDecision(d.Reason, d.Allowed)
	return &Verdict{
		Allowed:      d.Allowed,
		Remaining:    d.Remaining,
		Reason:       d.Reason,
		Message:      d.Message,
		ResetSeconds: d.ResetSeconds,
	}, nil
}

// RecordSend must be called exactly once per successful send. It bumps the
// rate-limit counters, the warm-up day count and the registry counters, and
// returns the first failure so the caller can retry. Writes made before the
// failure are kept, so a retry over-counts them.
func (s *Service) RecordSend(ctx context.Context, identityID string) (err error) {
	defer func() { s.metrics.ObserveSend(err) }()

	if err := s.tracker.Record(ctx, identityID); err != nil {
		return err
	}
	if _, err := s.warmups.RecordSend(ctx, identityID); err != nil && !errors.Is(err, warmup.ErrNotInitialized) {
		logger.Error("[Sending] warm-up count failed", "identity", identityID, "error", err)
		return fmt.Errorf("recording warm-up send for %s: %w", identityID, err)
	}
	if err := s.registry.IncrementSent(ctx, identityID, clock.DayKey(s.clock.Now())); err != nil {
		logger.Error("[Sending] registry count failed", "identity", identityID, "error", err)
		return fmt.Errorf("incrementing sent for %s: %w", identityID, err)
	}
	return nil
}

// RecordError stamps a delivery failure on the identity. It feeds the
// health score and the selection penalty.
func (s *Service) RecordError(ctx context.Context, identityID string) error {
	if err := s.registry.RecordError(ctx, identityID, s.clock.Now()); err != nil {
		return fmt.Errorf("recording error for %s: %w", identityID, err)
	}
	logger.Info("[Sending] send error recorded", "identity", identityID)
	return nil
}

// SelectBest picks identities from the registry.
func (s *Service) SelectBest(ctx context.Context, opts selection.Options) (*selection.Selection, error) {
	ids, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	sel, err := s.engine.SelectBest(ctx, ids, opts)
	s.metrics.ObserveSelection("select", failureCode(err))
	return sel, err
}

// Distribute spreads jobs over the registry's identities.
func (s *Service) Distribute(ctx context.Context, jobs []selection.Job) (*selection.Batches, error) {
	ids, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	b, err := s.engine.Distribute(ctx, jobs, ids)
	s.metrics.ObserveSelection("distribute", failureCode(err))
	return b, err
}

// RotationStatus reports every identity's current standing.
func (s *Service) RotationStatus(ctx context.Context) (*selection.RotationStatus, error) {
	ids, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.RotationStatus(ctx, ids)
}

// Advise returns the health report for an identity. Today's count is the
// larger of the live counter and the registry's count for the same day.
func (s *Service) Advise(ctx context.Context, identityID string) (*domain.Advice, error) {
	id, err := s.registry.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	today := clock.DayKey(now)
	id.EmailsSentToday = max(id.SentOn(today), s.tracker.Usage(ctx, identityID).Daily)
	id.SentTodayDate = today
	a := health.Advise(*id, now)
	return &a, nil
}

func failureCode(err error) string {
	if err == nil {
		return "ok"
	}
	var f *selection.Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return "error"
}
