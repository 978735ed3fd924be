package health

import (
	"time"

	"github.com/ignite/warmup-scheduler/internal/domain"
)

var baseScore = map[domain.WarmupStatus]int{
	domain.StatusCold:      20,
	domain.StatusWarmingW1: 35,
	domain.StatusWarmingW2: 50,
	domain.StatusWarmingW3: 65,
	domain.StatusWarm:      80,
	domain.StatusHot:       95,
}

const (
	recentErrorWindow = 24 * time.Hour
	olderErrorWindow  = 72 * time.Hour
)

// UsageRatio is today's sends over the identity's effective daily cap.
func UsageRatio(id domain.Identity, p domain.Provider) float64 {
	daily := Caps(id, p).Daily
	if daily <= 0 {
		return 0
	}
	return float64(id.EmailsSentToday) / float64(daily)
}

// Score computes the 0-100 health score.
func Score(id domain.Identity, p domain.Provider, now time.Time) int {
	score := baseScore[Status(id, now)]

	switch {
	case id.ErrorWithin(now, recentErrorWindow):
		score -= 20
	case id.ErrorWithin(now, olderErrorWindow):
		score -= 10
	}

	switch ratio := UsageRatio(id, p); {
	case ratio > 0.8:
		score -= 10
	case ratio > 0.5:
		score -= 5
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
