package sending

import (
	"context"

	"github.com/ignite/warmup-scheduler/internal/domain"
	"github.com/ignite/warmup-scheduler/internal/warmup"
)

// InitializeWarmup starts (or restarts) the warm-up of a registered identity.
func (s *Service) InitializeWarmup(ctx context.Context, identityID string, settings domain.WarmupSettings) (*domain.WarmupRecord, error) {
	if _, err := s.registry.Get(ctx, identityID); err != nil {
		return nil, err
	}
	return s.warmups.Initialize(ctx, identityID, settings)
}

func (s *Service) PauseWarmup(ctx context.Context, identityID string) (*domain.WarmupRecord, error) {
	return s.warmups.Pause(ctx, identityID)
}

func (s *Service) ResumeWarmup(ctx context.Context, identityID string) (*domain.WarmupRecord, error) {
	return s.warmups.Resume(ctx, identityID)
}

func (s *Service) DisableWarmup(ctx context.Context, identityID string) (*domain.WarmupRecord, error) {
	return s.warmups.Disable(ctx, identityID)
}

// OverrideDailyLimit pins the warm-up quota; nil clears the override.
func (s *Service) OverrideDailyLimit(ctx context.Context, identityID string, limit *int) (*domain.WarmupRecord, error) {
	return s.warmups.OverrideDailyLimit(ctx, identityID, limit)
}

func (s *Service) UpdateWarmupSettings(ctx context.Context, identityID string, settings domain.WarmupSettings) (*domain.WarmupRecord, error) {
	return s.warmups.UpdateSettings(ctx, identityID, settings)
}

func (s *Service) WarmupStatus(ctx context.Context, identityID string) (*warmup.Status, error) {
	return s.warmups.Status(ctx, identityID)
}

func (s *Service) DeleteWarmup(ctx context.Context, identityID string) error {
	return s.warmups.Delete(ctx, identityID)
}

// ResetRateLimits clears the identity's current hour and day counters.
func (s *Service) ResetRateLimits(ctx context.Context, identityID string) error {
	return s.tracker.Reset(ctx, identityID)
}
