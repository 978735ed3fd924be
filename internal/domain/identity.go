package domain

import "time"

// Identity is one outbound credential bound to a single mail relay. The
// registry owns identities; the scheduler only reads them and updates the
// mutable counters.
type Identity struct {
	ID              string     `json:"id" db:"id"`
	Host            string     `json:"host" db:"smtp_host"`
	User            string     `json:"user" db:"smtp_username"`
	Active          bool       `json:"active" db:"is_active"`
	HourlyLimit     int        `json:"hourly_limit" db:"hourly_limit"` // 0 = provider default
	DailyLimit      int        `json:"daily_limit" db:"daily_limit"`   // 0 = provider default
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	EmailsSentTotal int        `json:"emails_sent_total" db:"emails_sent_total"`
	EmailsSentToday int        `json:"emails_sent_today" db:"emails_sent_today"`
	SentTodayDate   string     `json:"sent_today_date,omitempty" db:"sent_today_date"` // YYYY-MM-DD the count belongs to
	LastError       *time.Time `json:"last_error,omitempty" db:"last_error_at"`
}

// ErrorWithin reports whether the identity's last error happened less than d
// before now.
func (i Identity) ErrorWithin(now time.Time, d time.Duration) bool {
	if i.LastError == nil {
		return false
	}
	return now.Sub(*i.LastError) < d
}

// SentOn returns EmailsSentToday when it was counted on day (YYYY-MM-DD),
// and 0 when the count is left over from an earlier day or undated.
func (i Identity) SentOn(day string) int {
	if i.SentTodayDate != day {
		return 0
	}
	return i.EmailsSentToday
}
