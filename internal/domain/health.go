package domain

// WarmupStatus is the coarse trust bucket of an identity.
type WarmupStatus string

const (
	StatusCold      WarmupStatus = "cold"
	StatusWarmingW1 WarmupStatus = "warming_w1"
	StatusWarmingW2 WarmupStatus = "warming_w2"
	StatusWarmingW3 WarmupStatus = "warming_w3"
	StatusWarm      WarmupStatus = "warm"
	StatusHot       WarmupStatus = "hot"
)

// StatusOrder lists the statuses from least to most trusted.
var StatusOrder = []WarmupStatus{
	StatusCold, StatusWarmingW1, StatusWarmingW2, StatusWarmingW3, StatusWarm, StatusHot,
}

// Rank returns the position of s in StatusOrder, or 0 for unknown values.
func (s WarmupStatus) Rank() int {
	for i, v := range StatusOrder {
		if v == s {
			return i
		}
	}
	return 0
}

// Provider describes the published limits of a relay platform.
type Provider struct {
	Name       string `json:"name"`
	DailyCap   int    `json:"daily_cap"`
	HourlyCap  int    `json:"hourly_cap"`
	Notes      string `json:"notes"`
	WarmupDays int    `json:"warmup_days"`
}

// Quota is an hourly/daily pair.
type Quota struct {
	Hourly int `json:"hourly"`
	Daily  int `json:"daily"`
}

// Advice is the read-only health report for one identity.
type Advice struct {
	IdentityID  string       `json:"identity_id"`
	Provider    Provider     `json:"provider"`
	Status      WarmupStatus `json:"status"`
	HealthScore int          `json:"health_score"`
	Recommended Quota        `json:"recommended"`
	Warnings    []string     `json:"warnings"`
	Actions     []string     `json:"actions"`
}
