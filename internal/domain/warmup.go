package domain

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the calendar-day format used for record dates and day keys.
const DateLayout = "2006-01-02"

// Profile names a warm-up ramp.
type Profile string

const (
	ProfileConservative Profile = "conservative"
	ProfileStandard     Profile = "standard"
	ProfileAggressive   Profile = "aggressive"
	ProfileCustom       Profile = "custom"
)

// Valid reports whether p is one of the known profiles.
func (p Profile) Valid() bool {
	switch p {
	case ProfileConservative, ProfileStandard, ProfileAggressive, ProfileCustom:
		return true
	}
	return false
}

// Phase is a contiguous range of days whose daily quota is linearly
// interpolated from StartLimit to EndLimit.
type Phase struct {
	Days       int `json:"days" yaml:"days"`
	StartLimit int `json:"start_limit" yaml:"start_limit"`
	EndLimit   int `json:"end_limit" yaml:"end_limit"`
}

// Limit is a daily quota. Unlimited stands in for an unbounded quota.
type Limit int

// Unlimited is the sentinel for "no ceiling".
const Unlimited Limit = -1

// Unbounded reports whether l carries no ceiling.
func (l Limit) Unbounded() bool { return l < 0 }

// Remaining returns how many sends are left after sent. Unbounded limits
// report math.MaxInt32 so sums over a pool stay representable.
func (l Limit) Remaining(sent int) int {
	if l.Unbounded() {
		return 1<<31 - 1
	}
	if r := int(l) - sent; r > 0 {
		return r
	}
	return 0
}

func (l Limit) String() string {
	if l.Unbounded() {
		return "unlimited"
	}
	return strconv.Itoa(int(l))
}

// FullyWarm is the StartingPointSkipDays sentinel for identities that need
// no ramp at all.
const FullyWarm = -1

// HistoryLimit bounds WarmupRecord.History.
const HistoryLimit = 30

// HistoryEntry archives one finished day.
type HistoryEntry struct {
	Date  string `json:"date"`
	Sent  int    `json:"sent"`
	Limit Limit  `json:"limit"`
	Phase int    `json:"phase"`
}

// WarmupRecord is the per-identity warm-up state. It is persisted as JSON
// under the identity id and must be re-derivable from its own fields.
type WarmupRecord struct {
	IdentityID            string         `json:"identity_id"`
	Enabled               bool           `json:"enabled"`
	Profile               Profile        `json:"profile"`
	CustomPhases          []Phase        `json:"custom_phases,omitempty"`
	StartDate             string         `json:"start_date"`
	StartingPointSkipDays int            `json:"starting_point_skip_days"`
	CustomDailyLimit      *int           `json:"custom_daily_limit,omitempty"`
	WeekendReduction      bool           `json:"weekend_reduction"`
	WeekendFactor         float64        `json:"weekend_factor,omitempty"`
	TodayDate             string         `json:"today_date"`
	TodaySent             int            `json:"today_sent"`
	TotalSent             int            `json:"total_sent"`
	DailyLimit            Limit          `json:"daily_limit"`
	IsPaused              bool           `json:"is_paused"`
	PausedAt              *time.Time     `json:"paused_at,omitempty"`
	History               []HistoryEntry `json:"history"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// Validate rejects records that cannot have been produced by the store.
func (r *WarmupRecord) Validate() error {
	if r.IdentityID == "" {
		return fmt.Errorf("identity_id is required")
	}
	if !r.Profile.Valid() {
		return fmt.Errorf("unknown profile %q", r.Profile)
	}
	if _, err := time.Parse(DateLayout, r.StartDate); err != nil {
		return fmt.Errorf("start_date %q: %w", r.StartDate, err)
	}
	if r.TodayDate != "" {
		if _, err := time.Parse(DateLayout, r.TodayDate); err != nil {
			return fmt.Errorf("today_date %q: %w", r.TodayDate, err)
		}
	}
	if r.StartingPointSkipDays < FullyWarm {
		return fmt.Errorf("starting_point_skip_days %d is negative", r.StartingPointSkipDays)
	}
	if r.TodaySent < 0 || r.TotalSent < 0 {
		return fmt.Errorf("negative send counters")
	}
	if r.CustomDailyLimit != nil && *r.CustomDailyLimit < 0 {
		return fmt.Errorf("custom_daily_limit %d is negative", *r.CustomDailyLimit)
	}
	if r.WeekendFactor < 0 || r.WeekendFactor > 1 {
		return fmt.Errorf("weekend_factor %.2f outside [0,1]", r.WeekendFactor)
	}
	for i, p := range r.CustomPhases {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("custom phase %d: %w", i+1, err)
		}
	}
	return nil
}

// Validate checks a single phase definition.
func (p Phase) Validate() error {
	if p.Days <= 0 {
		return fmt.Errorf("days must be positive, got %d", p.Days)
	}
	if p.StartLimit < 0 || p.EndLimit < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	return nil
}

// WarmupSettings are the operator-supplied inputs to (re)initialize a record.
type WarmupSettings struct {
	Profile               Profile `json:"profile"`
	CustomPhases          []Phase `json:"custom_phases,omitempty"`
	StartDate             string  `json:"start_date,omitempty"` // defaults to today
	StartingPointSkipDays int     `json:"starting_point_skip_days"`
	CustomDailyLimit      *int    `json:"custom_daily_limit,omitempty"`
	WeekendReduction      bool    `json:"weekend_reduction"`
	WeekendFactor         float64 `json:"weekend_factor,omitempty"`
}
