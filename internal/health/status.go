package health

import (
	"time"

	"github.com/ignite/warmup-scheduler/internal/domain"
	"github.com/ignite/warmup-scheduler/internal/pkg/clock"
)

// Day thresholds for warming_w1, w2, w3 and warm.
var dayThresholds = []struct {
	days   int
	status domain.WarmupStatus
}{
	{30, domain.StatusWarm},
	{21, domain.StatusWarmingW3},
	{14, domain.StatusWarmingW2},
	{7, domain.StatusWarmingW1},
}

// Lifetime send thresholds for warming_w1 through hot.
var sendThresholds = []struct {
	sent   int
	status domain.WarmupStatus
}{
	{2000, domain.StatusHot},
	{700, domain.StatusWarm},
	{350, domain.StatusWarmingW3},
	{150, domain.StatusWarmingW2},
	{50, domain.StatusWarmingW1},
}

// AgeDays is the number of calendar days since the identity was created.
func AgeDays(id domain.Identity, now time.Time) int {
	if id.CreatedAt.IsZero() {
		return 0
	}
	if d := clock.DaysBetween(id.CreatedAt.In(now.Location()), now); d > 0 {
		return d
	}
	return 0
}

// Status grades an identity by age and lifetime volume and keeps the
// higher of the two, so either enough days or enough sends graduate it.
// Age alone never reaches hot.
func Status(id domain.Identity, now time.Time) domain.WarmupStatus {
	byDays := domain.StatusCold
	age := AgeDays(id, now)
	for _, t := range dayThresholds {
		if age >= t.days {
			byDays = t.status
			break
		}
	}

	bySends := domain.StatusCold
	for _, t := range sendThresholds {
		if id.EmailsSentTotal >= t.sent {
			bySends = t.status
			break
		}
	}

	if bySends.Rank() > byDays.Rank() {
		return bySends
	}
	return byDays
}

// StatusWeight is the selection weight of a status, 20 for cold up to 100
// for hot.
func StatusWeight(s domain.WarmupStatus) int {
	switch s {
	case domain.StatusHot:
		return 100
	case domain.StatusWarm:
		return 80
	case domain.StatusWarmingW3:
		return 65
	case domain.StatusWarmingW2:
		return 50
	case domain.StatusWarmingW1:
		return 35
	default:
		return 20
	}
}
