// Package clock makes wall time and the deployment time zone an explicit
// dependency. All day and hour keys are derived from the zone-adjusted time
// a Clock returns.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Clock returns the current time in the deployment's zone.
type Clock interface {
	Now() time.Time
}

// System reads the machine clock and converts it into Location.
type System struct {
	Location *time.Location
}

// NewSystem resolves an IANA zone name. An empty name means time.Local.
func NewSystem(zone string) (*System, error) {
	if zone == "" {
		return &System{Location: time.Local}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	return &System{Location: loc}, nil
}

func (s *System) Now() time.Time {
	if s.Location == nil {
		return time.Now()
	}
	return time.Now().In(s.Location)
}

// Mock is a settable clock for tests.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMock returns a Mock frozen at t.
func NewMock(t time.Time) *Mock { return &Mock{now: t} }

func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// DayKey formats t as YYYY-MM-DD in t's own location.
func DayKey(t time.Time) string { return t.Format("2006-01-02") }

// HourKey formats t as YYYY-MM-DD-HH in t's own location.
func HourKey(t time.Time) string { return t.Format("2006-01-02-15") }

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// UntilNextHour is the time left in t's hour window.
func UntilNextHour(t time.Time) time.Duration {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour()+1, 0, 0, 0, t.Location()).Sub(t)
}

// UntilMidnight is the time left in t's calendar day, computed on the
// calendar so DST transitions are respected.
func UntilMidnight(t time.Time) time.Duration {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()).Sub(t)
}

// DaysBetween counts calendar days from a to b (b-a), ignoring the time of
// day and DST offsets.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
