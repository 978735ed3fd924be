package warmup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/warmup-scheduler/internal/domain"
	"github.com/ignite/warmup-scheduler/internal/pkg/clock"
	"github.com/ignite/warmup-scheduler/internal/pkg/distlock"
	"github.com/ignite/warmup-scheduler/internal/pkg/kvstore"
	"github.com/ignite/warmup-scheduler/internal/pkg/logger"
)

const keyPrefix = "warmup:"

func recordKey(identityID string) string { return keyPrefix + identityID }

// Store persists warm-up records and keeps their day counters current.
// Every read-modify-write runs under a per-identity lock when a Locker is
// configured; if the lock cannot be taken the write still happens and the
// last writer wins.
type Store struct {
	kv             kvstore.Store
	clock          clock.Clock
	locker         distlock.Locker
	lockWait       time.Duration
	defaultProfile domain.Profile
	weekendFactor  float64
}

// Option configures a Store.
type Option func(*Store)

// WithLocker guards record writes with per-identity locks.
func WithLocker(l distlock.Locker, wait time.Duration) Option {
	return func(s *Store) {
		s.locker = l
		s.lockWait = wait
	}
}

// WithDefaultProfile sets the profile used when settings leave it empty.
func WithDefaultProfile(p domain.Profile) Option {
	return func(s *Store) { s.defaultProfile = p }
}

// WithWeekendFactor sets the factor stamped on records that enable weekend
// reduction without choosing one.
func WithWeekendFactor(f float64) Option {
	return func(s *Store) { s.weekendFactor = f }
}

// NewStore creates a Store over kv.
func NewStore(kv kvstore.Store, clk clock.Clock, opts ...Option) *Store {
	s := &Store{
		kv:             kv,
		clock:          clk,
		lockWait:       500 * time.Millisecond,
		defaultProfile: domain.ProfileStandard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status is a record plus the ramp values derived for today.
type Status struct {
	Record        *domain.WarmupRecord `json:"record"`
	Phase         int                  `json:"phase"`
	PhaseCount    int                  `json:"phase_count"`
	DaysRemaining int                  `json:"days_remaining"`
	Complete      bool                 `json:"complete"`
	Remaining     int                  `json:"remaining"`
}

// Initialize creates the record, replacing any previous one. This is also
// the only way back from disabled.
func (s *Store) Initialize(ctx context.Context, identityID string, settings domain.WarmupSettings) (*domain.WarmupRecord, error) {
	now := s.clock.Now()
	rec := &domain.WarmupRecord{
		IdentityID: identityID,
		Enabled:    true,
		History:    []domain.HistoryEntry{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if settings.StartDate == "" {
		settings.StartDate = clock.DayKey(now)
	}
	if err := s.applySettings(rec, settings); err != nil {
		return nil, err
	}

	err := s.withLock(ctx, identityID, func() error {
		if _, err := s.rollover(rec, now); err != nil {
			return err
		}
		return s.save(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("[Warmup] initialized", "identity", identityID, "profile", string(rec.Profile),
		"start_date", rec.StartDate, "daily_limit", rec.DailyLimit.String())
	return rec, nil
}

// Get loads the record, rolling the day over first if needed.
func (s *Store) Get(ctx context.Context, identityID string) (*domain.WarmupRecord, error) {
	return s.mutate(ctx, identityID, nil)
}

// Status returns the record with its derived ramp values.
func (s *Store) Status(ctx context.Context, identityID string) (*Status, error) {
	rec, err := s.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return Describe(rec, s.clock.Now())
}

// Describe derives a Status for rec as of now.
func Describe(rec *domain.WarmupRecord, now time.Time) (*Status, error) {
	st := &Status{Record: rec, Remaining: rec.DailyLimit.Remaining(rec.TodaySent)}
	if !rec.Enabled {
		return st, nil
	}
	phases, err := PhasesFor(rec)
	if err != nil {
		return nil, err
	}
	st.PhaseCount = len(phases)
	if st.Phase, err = CurrentPhase(rec, now); err != nil {
		return nil, err
	}
	if st.DaysRemaining, err = DaysRemaining(rec, now); err != nil {
		return nil, err
	}
	st.Complete = st.DaysRemaining == 0
	return st, nil
}

// RecordSend counts one send against today.
func (s *Store) RecordSend(ctx context.Context, identityID string) (*domain.WarmupRecord, error) {
	return s.mutate(ctx, identityID, func(rec *domain.WarmupRecord, _ time.Time) (bool, error) {
		rec.TodaySent++
		rec.TotalSent++
		return true, nil
	})
}

// Pause freezes eligibility. Pausing a paused record is a no-op.
func (s *Store) Pause(ctx context.Context, identityID string) (*domain.WarmupRecord, error) {
	return s.mutate(ctx, identityID, func(rec *domain.WarmupRecord, now time.Time) (bool, error) {
		if !rec.Enabled {
			return false, ErrWarmupDisabled
		}
		if rec.IsPaused {
			return false, nil
		}
		rec.IsPaused = true
		rec.PausedAt = &now
		logger.Info("[Warmup] paused", "identity", identityID)
		return true, nil
	})
}

// Resume lifts a pause. Resuming an active record is a no-op.
func (s *Store) Resume(ctx context.Context, identityID string) (*domain.WarmupRecord, error) {
	return s.mutate(ctx, identityID, func(rec *domain.WarmupRecord, _ time.Time) (bool, error) {
		if !rec.Enabled {
			return false, ErrWarmupDisabled
		}
		if !rec.IsPaused {
			return false, nil
		}
		rec.IsPaused = false
		rec.PausedAt = nil
		logger.Info("[Warmup] resumed", "identity", identityID)
		return true, nil
	})
}

// Disable ends warm-up tracking; the quota becomes unbounded. History and
// counters are kept.
func (s *Store) Disable(ctx context.Context, identityID string) (*domain.WarmupRecord, error) {
	return s.mutate(ctx, identityID, func(rec *domain.WarmupRecord, _ time.Time) (bool, error) {
		if !rec.Enabled {
			return false, nil
		}
		rec.Enabled = false
		rec.IsPaused = false
		rec.PausedAt = nil
		rec.DailyLimit = domain.Unlimited
		logger.Info("[Warmup] disabled", "identity", identityID)
		return true, nil
	})
}

// OverrideDailyLimit sets a fixed daily quota, or clears it when limit is nil.
func (s *Store) OverrideDailyLimit(ctx context.Context, identityID string, limit *int) (*domain.WarmupRecord, error) {
	if limit != nil && *limit < 0 {
		return nil, fmt.Errorf("%w: daily limit %d is negative", ErrInvalidRecord, *limit)
	}
	return s.mutate(ctx, identityID, func(rec *domain.WarmupRecord, now time.Time) (bool, error) {
		rec.CustomDailyLimit = limit
		eff, err := EffectiveDailyLimit(rec, now)
		if err != nil {
			return false, err
		}
		rec.DailyLimit = eff
		return true, nil
	})
}

// UpdateSettings changes the ramp of an existing record without touching
// its counters or history.
func (s *Store) UpdateSettings(ctx context.Context, identityID string, settings domain.WarmupSettings) (*domain.WarmupRecord, error) {
	return s.mutate(ctx, identityID, func(rec *domain.WarmupRecord, now time.Time) (bool, error) {
		if settings.StartDate == "" {
			settings.StartDate = rec.StartDate
		}
		if err := s.applySettings(rec, settings); err != nil {
			return false, err
		}
		eff, err := EffectiveDailyLimit(rec, now)
		if err != nil {
			return false, err
		}
		rec.DailyLimit = eff
		return true, nil
	})
}

// Delete removes the record. Nothing else ever deletes one.
func (s *Store) Delete(ctx context.Context, identityID string) error {
	return s.withLock(ctx, identityID, func() error {
		return s.kv.Del(ctx, recordKey(identityID))
	})
}

// IDs lists every identity that has a record.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, keyPrefix))
	}
	return ids, nil
}

// Sweep rolls every stored record over to today and reports how many were
// touched. A broken record is logged and skipped.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	ids, err := s.IDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing warm-up records: %w", err)
	}
	var errs []error
	n := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := s.Get(ctx, id); err != nil {
			logger.Warn("[Warmup] sweep failed", "identity", id, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// mutate loads the record under lock, rolls it over, applies fn and saves
// when anything changed. A nil fn is a plain read.
func (s *Store) mutate(ctx context.Context, identityID string, fn func(*domain.WarmupRecord, time.Time) (bool, error)) (*domain.WarmupRecord, error) {
	var out *domain.WarmupRecord
	err := s.withLock(ctx, identityID, func() error {
		rec, err := s.load(ctx, identityID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		dirty, err := s.rollover(rec, now)
		if err != nil {
			return err
		}
		if fn != nil {
			changed, err := fn(rec, now)
			if err != nil {
				return err
			}
			dirty = dirty || changed
		}
		if dirty {
			rec.UpdatedAt = now
			if err := s.save(ctx, rec); err != nil {
				return err
			}
		}
		out = rec
		return nil
	})
	return out, err
}

// rollover moves a record onto today's date. It is a no-op when TodayDate
// already matches, so racing callers converge on the same state.
func (s *Store) rollover(rec *domain.WarmupRecord, now time.Time) (bool, error) {
	today := clock.DayKey(now)
	if rec.TodayDate == today {
		return false, nil
	}

	if rec.TodayDate != "" {
		entry := domain.HistoryEntry{Date: rec.TodayDate, Sent: rec.TodaySent, Limit: rec.DailyLimit}
		if prev, err := time.ParseInLocation(domain.DateLayout, rec.TodayDate, now.Location()); err == nil {
			// A day before StartDate archives as phase 0.
			entry.Phase, _ = CurrentPhase(rec, prev)
		}
		rec.History = append(rec.History, entry)
		if len(rec.History) > domain.HistoryLimit {
			rec.History = rec.History[len(rec.History)-domain.HistoryLimit:]
		}
	}

	limit, err := EffectiveDailyLimit(rec, now)
	if err != nil {
		return false, err
	}
	rec.TodayDate = today
	rec.TodaySent = 0
	rec.DailyLimit = limit
	return true, nil
}

func (s *Store) applySettings(rec *domain.WarmupRecord, settings domain.WarmupSettings) error {
	profile := settings.Profile
	if profile == "" {
		profile = s.defaultProfile
	}
	if !profile.Valid() {
		return fmt.Errorf("%w: unknown profile %q", ErrInvalidRecord, profile)
	}
	if settings.StartingPointSkipDays < domain.FullyWarm {
		return fmt.Errorf("%w: starting point %d", ErrInvalidRecord, settings.StartingPointSkipDays)
	}
	if settings.CustomDailyLimit != nil && *settings.CustomDailyLimit < 0 {
		return fmt.Errorf("%w: daily limit %d is negative", ErrInvalidRecord, *settings.CustomDailyLimit)
	}
	if settings.WeekendFactor < 0 || settings.WeekendFactor > 1 {
		return fmt.Errorf("%w: weekend factor %.2f outside [0,1]", ErrInvalidRecord, settings.WeekendFactor)
	}
	for i, p := range settings.CustomPhases {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: phase %d: %v", ErrInvalidRecord, i+1, err)
		}
	}
	if settings.WeekendReduction && settings.WeekendFactor == 0 {
		settings.WeekendFactor = s.weekendFactor
	}

	rec.Profile = profile
	rec.CustomPhases = settings.CustomPhases
	rec.StartDate = settings.StartDate
	rec.StartingPointSkipDays = settings.StartingPointSkipDays
	rec.CustomDailyLimit = settings.CustomDailyLimit
	rec.WeekendReduction = settings.WeekendReduction
	rec.WeekendFactor = settings.WeekendFactor

	// Surface profile and start date problems now rather than on first send.
	if _, err := PhasesFor(rec); err != nil {
		return err
	}
	_, err := DaysSinceStart(rec, s.clock.Now())
	return err
}

func (s *Store) load(ctx context.Context, identityID string) (*domain.WarmupRecord, error) {
	raw, found, err := s.kv.Get(ctx, recordKey(identityID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, identityID)
	}
	var rec domain.WarmupRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrInvalidRecord, identityID, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRecord, identityID, err)
	}
	if rec.IdentityID != identityID {
		return nil, fmt.Errorf("%w: record under %s belongs to %s", ErrInvalidRecord, identityID, rec.IdentityID)
	}
	return &rec, nil
}

func (s *Store) save(ctx context.Context, rec *domain.WarmupRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding warm-up record: %w", err)
	}
	return s.kv.Set(ctx, recordKey(rec.IdentityID), string(data), 0)
}

func (s *Store) withLock(ctx context.Context, identityID string, fn func() error) error {
	return distlock.WithLock(ctx, s.locker, recordKey(identityID), s.lockWait, fn)
}
