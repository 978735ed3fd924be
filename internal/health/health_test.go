package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/warmup-scheduler/internal/domain"
)

var now = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

func identity(ageDays, sent int) domain.Identity {
	return domain.Identity{
		ID:              "id-1",
		Host:            "smtp.gmail.com",
		User:            "sales@example.com",
		Active:          true,
		CreatedAt:       now.AddDate(0, 0, -ageDays),
		EmailsSentTotal: sent,
	}
}

func ago(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"smtp.gmail.com", "Gmail"},
		{"SMTP.Gmail.com:587", "Gmail"},
		{"smtp-relay.gmail.com", "Google Workspace"},
		{"aspmx.l.google.com", "Gmail"},
		{"smtp.office365.com", "Microsoft 365"},
		{"smtp-mail.outlook.com", "Outlook.com"},
		{"mx.hotmail.example", "Outlook.com"},
		{"email-smtp.eu-west-1.amazonaws.com", "Amazon SES"},
		{"smtp.ionos.nl", "IONOS"},
		{"mail.strato.example", "STRATO"},
		{"smtp.transip.email", "TransIP"},
		{"mail.example.org", "Unknown"},
		{"", "Unknown"},
	}
	for _, tt := range tests {
		got := DetectProvider(tt.host)
		if got.Name != tt.want {
			t.Errorf("DetectProvider(%q) = %q, want %q", tt.host, got.Name, tt.want)
		}
	}

	u := DetectProvider("mail.example.org")
	assert.Equal(t, 100, u.DailyCap)
	assert.Equal(t, 20, u.HourlyCap)
	assert.Equal(t, 30, u.WarmupDays)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		age  int
		sent int
		want domain.WarmupStatus
	}{
		{"new", 0, 0, domain.StatusCold},
		{"six days", 6, 49, domain.StatusCold},
		{"one week", 7, 0, domain.StatusWarmingW1},
		{"sends graduate early", 1, 150, domain.StatusWarmingW2},
		{"two weeks", 14, 0, domain.StatusWarmingW2},
		{"three weeks", 21, 10, domain.StatusWarmingW3},
		{"volume beats age", 3, 700, domain.StatusWarm},
		{"age beats volume", 30, 60, domain.StatusWarm},
		{"40 days below hot", 40, 1500, domain.StatusWarm},
		{"40 days at hot", 40, 2000, domain.StatusHot},
		{"age alone never hot", 400, 0, domain.StatusWarm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(identity(tt.age, tt.sent), now))
		})
	}
}

func TestStatusIsMonotoneInSends(t *testing.T) {
	prev := domain.StatusCold
	for sent := 0; sent <= 2500; sent += 25 {
		s := Status(identity(0, sent), now)
		assert.GreaterOrEqual(t, s.Rank(), prev.Rank())
		prev = s
	}
}

func TestStatusWeight(t *testing.T) {
	assert.Equal(t, 20, StatusWeight(domain.StatusCold))
	assert.Equal(t, 35, StatusWeight(domain.StatusWarmingW1))
	assert.Equal(t, 50, StatusWeight(domain.StatusWarmingW2))
	assert.Equal(t, 65, StatusWeight(domain.StatusWarmingW3))
	assert.Equal(t, 80, StatusWeight(domain.StatusWarm))
	assert.Equal(t, 100, StatusWeight(domain.StatusHot))
}

func TestScore(t *testing.T) {
	gmail := DetectProvider("smtp.gmail.com")

	tests := []struct {
		name   string
		mutate func(*domain.Identity)
		want   int
	}{
		{"cold baseline", func(i *domain.Identity) {}, 20},
		{"hot baseline", func(i *domain.Identity) { i.EmailsSentTotal = 5000 }, 95},
		{"error today", func(i *domain.Identity) { i.EmailsSentTotal = 5000; i.LastError = ago(2 * time.Hour) }, 75},
		{"error two days ago", func(i *domain.Identity) { i.EmailsSentTotal = 5000; i.LastError = ago(48 * time.Hour) }, 85},
		{"old error ignored", func(i *domain.Identity) { i.EmailsSentTotal = 5000; i.LastError = ago(96 * time.Hour) }, 95},
		{"over half used", func(i *domain.Identity) { i.EmailsSentTotal = 5000; i.EmailsSentToday = 300 }, 90},
		{"over 80% used", func(i *domain.Identity) { i.EmailsSentTotal = 5000; i.EmailsSentToday = 450 }, 85},
		{"own cap used", func(i *domain.Identity) { i.EmailsSentTotal = 5000; i.DailyLimit = 100; i.EmailsSentToday = 90 }, 85},
		{"clamped at zero", func(i *domain.Identity) { i.LastError = ago(time.Hour); i.EmailsSentToday = 499 }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := identity(0, 0)
			tt.mutate(&id)
			assert.Equal(t, tt.want, Score(id, gmail, now))
		})
	}
}

func TestRecommendedIsCappedByProvider(t *testing.T) {
	gmail := DetectProvider("smtp.gmail.com")
	assert.Equal(t, domain.Quota{Hourly: 5, Daily: 20}, Recommended(domain.StatusCold, gmail))
	assert.Equal(t, domain.Quota{Hourly: 60, Daily: 500}, Recommended(domain.StatusHot, gmail))
	assert.Equal(t, domain.Quota{Hourly: 20, Daily: 100}, Recommended(domain.StatusHot, Unknown))
}

func TestAdvise(t *testing.T) {
	cold := identity(2, 10)
	a := Advise(cold, now)
	assert.Equal(t, "id-1", a.IdentityID)
	assert.Equal(t, "Gmail", a.Provider.Name)
	assert.Equal(t, domain.StatusCold, a.Status)
	assert.Equal(t, 20, a.HealthScore)
	assert.Equal(t, domain.Quota{Hourly: 5, Daily: 20}, a.Recommended)
	assert.Contains(t, a.Warnings[0], "Cold account")

	busy := identity(60, 5000)
	busy.EmailsSentToday = 450
	busy.LastError = ago(time.Hour)
	a = Advise(busy, now)
	assert.Equal(t, domain.StatusHot, a.Status)
	assert.Len(t, a.Warnings, 2)
	assert.Contains(t, a.Warnings[0], "Near daily limit: 450 of 500")
	assert.Equal(t, "Send error in the last 24 hours", a.Warnings[1])

	healthy := identity(60, 5000)
	a = Advise(healthy, now)
	assert.Empty(t, a.Warnings)
	assert.NotEmpty(t, a.Actions)
}

func TestAdviseDoesNotMutate(t *testing.T) {
	id := identity(3, 10)
	id.LastError = ago(time.Hour)
	before := id
	_ = Advise(id, now)
	assert.Equal(t, before, id)
}
