package health

import (
	"fmt"
	"time"

	"github.com/ignite/warmup-scheduler/internal/domain"
)

// schedule is the recommended quota per status before provider caps.
var schedule = map[domain.WarmupStatus]domain.Quota{
	domain.StatusCold:      {Hourly: 5, Daily: 20},
	domain.StatusWarmingW1: {Hourly: 10, Daily: 50},
	domain.StatusWarmingW2: {Hourly: 15, Daily: 100},
	domain.StatusWarmingW3: {Hourly: 25, Daily: 200},
	domain.StatusWarm:      {Hourly: 40, Daily: 400},
	domain.StatusHot:       {Hourly: 60, Daily: 1000},
}

// Recommended is the status schedule capped by the provider ceiling.
func Recommended(status domain.WarmupStatus, p domain.Provider) domain.Quota {
	q := schedule[status]
	if p.HourlyCap > 0 && q.Hourly > p.HourlyCap {
		q.Hourly = p.HourlyCap
	}
	if p.DailyCap > 0 && q.Daily > p.DailyCap {
		q.Daily = p.DailyCap
	}
	return q
}

// Advise builds the read-only health report for an identity.
func Advise(id domain.Identity, now time.Time) domain.Advice {
	p := DetectProvider(id.Host)
	status := Status(id, now)
	rec := Recommended(status, p)
	caps := Caps(id, p)

	a := domain.Advice{
		IdentityID:  id.ID,
		Provider:    p,
		Status:      status,
		HealthScore: Score(id, p, now),
		Recommended: rec,
		Warnings:    []string{},
		Actions:     []string{},
	}

	if !id.Active {
		a.Warnings = append(a.Warnings, "Identity is inactive and will not be selected")
		a.Actions = append(a.Actions, "Activate the identity once its credentials are verified")
	}

	if status == domain.StatusCold {
		a.Warnings = append(a.Warnings,
			fmt.Sprintf("Cold account: %d days old with %d emails sent", AgeDays(id, now), id.EmailsSentTotal))
		a.Actions = append(a.Actions,
			fmt.Sprintf("Keep volume at or below %d per day and %d per hour", rec.Daily, rec.Hourly),
			"Start a warm-up with the conservative profile")
	}

	if ratio := UsageRatio(id, p); ratio > 0.8 {
		a.Warnings = append(a.Warnings,
			fmt.Sprintf("Near daily limit: %d of %d sent today", id.EmailsSentToday, caps.Daily))
		a.Actions = append(a.Actions, "Spread the remaining sends over other identities")
	}

	switch {
	case id.ErrorWithin(now, recentErrorWindow):
		a.Warnings = append(a.Warnings, "Send error in the last 24 hours")
		a.Actions = append(a.Actions, "Check relay credentials and bounce logs before sending more")
	case id.ErrorWithin(now, olderErrorWindow):
		a.Warnings = append(a.Warnings, "Send error in the last 72 hours")
	}

	if id.DailyLimit > rec.Daily {
		a.Warnings = append(a.Warnings,
			fmt.Sprintf("Configured daily limit %d is above the recommended %d", id.DailyLimit, rec.Daily))
		a.Actions = append(a.Actions, fmt.Sprintf("Lower the daily limit to %d", rec.Daily))
	}

	if len(a.Warnings) == 0 && status.Rank() >= domain.StatusWarm.Rank() {
		a.Actions = append(a.Actions, "Healthy: volume can grow gradually up to the recommended quota")
	}
	return a
}
