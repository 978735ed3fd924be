package warmup

import (
	"fmt"
	"math"
	"time"

	"github.com/ignite/warmup-scheduler/internal/domain"
	"github.com/ignite/warmup-scheduler/internal/pkg/clock"
)

// DefaultWeekendFactor scales the quota on Saturday and Sunday when a
// record enables weekend reduction without its own factor.
const DefaultWeekendFactor = 0.5

// Profiles are the built-in ramps. Boundaries are kept exactly as listed,
// including any jump between one phase's end and the next one's start.
var Profiles = map[domain.Profile][]domain.Phase{
	domain.ProfileConservative: {
		{Days: 14, StartLimit: 5, EndLimit: 15},
		{Days: 14, StartLimit: 15, EndLimit: 30},
		{Days: 14, StartLimit: 30, EndLimit: 50},
	},
	domain.ProfileStandard: {
		{Days: 7, StartLimit: 10, EndLimit: 20},
		{Days: 7, StartLimit: 20, EndLimit: 40},
		{Days: 7, StartLimit: 40, EndLimit: 70},
		{Days: 9, StartLimit: 70, EndLimit: 100},
	},
	domain.ProfileAggressive: {
		{Days: 7, StartLimit: 20, EndLimit: 50},
		{Days: 7, StartLimit: 50, EndLimit: 100},
		{Days: 7, StartLimit: 100, EndLimit: 200},
	},
}

// PhasesFor returns the phase list the record ramps through.
func PhasesFor(rec *domain.WarmupRecord) ([]domain.Phase, error) {
	if rec.Profile == domain.ProfileCustom {
		if len(rec.CustomPhases) == 0 && rec.CustomDailyLimit == nil {
			return nil, fmt.Errorf("%w: custom profile needs phases or a daily limit", ErrInvalidRecord)
		}
		return rec.CustomPhases, nil
	}
	phases, ok := Profiles[rec.Profile]
	if !ok {
		return nil, fmt.Errorf("%w: unknown profile %q", ErrInvalidRecord, rec.Profile)
	}
	return phases, nil
}

// TotalDays is the length of a ramp.
func TotalDays(phases []domain.Phase) int {
	total := 0
	for _, p := range phases {
		total += p.Days
	}
	return total
}

func fullyWarm(rec *domain.WarmupRecord) bool {
	return rec.StartingPointSkipDays == domain.FullyWarm
}

// DaysSinceStart counts calendar days from StartDate to today in today's
// zone, plus the skip offset.
func DaysSinceStart(rec *domain.WarmupRecord, today time.Time) (int, error) {
	start, err := time.Parse(domain.DateLayout, rec.StartDate)
	if err != nil {
		return 0, fmt.Errorf("%w: start_date %q", ErrInvalidRecord, rec.StartDate)
	}
	days := clock.DaysBetween(start, today)
	if days < 0 {
		return 0, fmt.Errorf("%w: start_date %s is after %s", ErrInvalidRecord, rec.StartDate, clock.DayKey(today))
	}
	if rec.StartingPointSkipDays > 0 {
		days += rec.StartingPointSkipDays
	}
	return days, nil
}

// DailyLimit is the warm-up quota for today before weekend de-rating.
func DailyLimit(rec *domain.WarmupRecord, today time.Time) (domain.Limit, error) {
	if !rec.Enabled {
		return domain.Unlimited, nil
	}
	phases, err := PhasesFor(rec)
	if err != nil {
		return 0, err
	}
	if rec.CustomDailyLimit != nil {
		return domain.Limit(*rec.CustomDailyLimit), nil
	}
	if fullyWarm(rec) {
		return domain.Unlimited, nil
	}
	days, err := DaysSinceStart(rec, today)
	if err != nil {
		return 0, err
	}

	elapsed := 0
	for _, p := range phases {
		if days < elapsed+p.Days {
			into := float64(days - elapsed)
			v := float64(p.StartLimit) + float64(p.EndLimit-p.StartLimit)*into/float64(p.Days)
			return domain.Limit(math.Round(v)), nil
		}
		elapsed += p.Days
	}
	return domain.Limit(phases[len(phases)-1].EndLimit), nil
}

// CurrentPhase is the 1-based phase for today, len(phases)+1 once the ramp
// is over, and 0 for a disabled record.
func CurrentPhase(rec *domain.WarmupRecord, today time.Time) (int, error) {
	if !rec.Enabled {
		return 0, nil
	}
	phases, err := PhasesFor(rec)
	if err != nil {
		return 0, err
	}
	if fullyWarm(rec) {
		return len(phases) + 1, nil
	}
	days, err := DaysSinceStart(rec, today)
	if err != nil {
		return 0, err
	}
	elapsed := 0
	for i, p := range phases {
		elapsed += p.Days
		if days < elapsed {
			return i + 1, nil
		}
	}
	return len(phases) + 1, nil
}

// DaysRemaining is max(0, ramp length - days since start).
func DaysRemaining(rec *domain.WarmupRecord, today time.Time) (int, error) {
	if !rec.Enabled {
		return 0, nil
	}
	phases, err := PhasesFor(rec)
	if err != nil {
		return 0, err
	}
	if fullyWarm(rec) {
		return 0, nil
	}
	days, err := DaysSinceStart(rec, today)
	if err != nil {
		return 0, err
	}
	if left := TotalDays(phases) - days; left > 0 {
		return left, nil
	}
	return 0, nil
}

// IsComplete reports whether an enabled record has finished its ramp.
func IsComplete(rec *domain.WarmupRecord, today time.Time) (bool, error) {
	if !rec.Enabled {
		return false, nil
	}
	left, err := DaysRemaining(rec, today)
	if err != nil {
		return false, err
	}
	return left == 0, nil
}

// EffectiveDailyLimit applies weekend de-rating to DailyLimit. An operator
// override is never de-rated, and a reduced quota never drops below 1.
func EffectiveDailyLimit(rec *domain.WarmupRecord, today time.Time) (domain.Limit, error) {
	limit, err := DailyLimit(rec, today)
	if err != nil {
		return 0, err
	}
	if !rec.WeekendReduction || rec.CustomDailyLimit != nil || limit.Unbounded() || !clock.IsWeekend(today) {
		return limit, nil
	}
	factor := rec.WeekendFactor
	if factor <= 0 {
		factor = DefaultWeekendFactor
	}
	reduced := domain.Limit(math.Round(float64(limit) * factor))
	if reduced < 1 && limit > 0 {
		reduced = 1
	}
	return reduced, nil
}
