package health

import (
	"strings"

	"github.com/ignite/warmup-scheduler/internal/domain"
)

// Known relay platforms keyed by a short provider id.
var providers = map[string]domain.Provider{
	"gmail":     {Name: "Gmail", DailyCap: 500, HourlyCap: 100, WarmupDays: 30, Notes: "Personal Google accounts; hard 500/day sending cap"},
	"workspace": {Name: "Google Workspace", DailyCap: 2000, HourlyCap: 250, WarmupDays: 30, Notes: "Per-user cap, relay service allows more with a verified domain"},
	"office365": {Name: "Microsoft 365", DailyCap: 10000, HourlyCap: 1800, WarmupDays: 30, Notes: "30 messages per minute, 10,000 recipients per day"},
	"outlook":   {Name: "Outlook.com", DailyCap: 300, HourlyCap: 100, WarmupDays: 45, Notes: "Consumer mailbox; new accounts are throttled aggressively"},
	"yahoo":     {Name: "Yahoo Mail", DailyCap: 500, HourlyCap: 100, WarmupDays: 30, Notes: "Consumer mailbox"},
	"zoho":      {Name: "Zoho Mail", DailyCap: 500, HourlyCap: 100, WarmupDays: 21, Notes: "Limits depend on plan"},
	"ses":       {Name: "Amazon SES", DailyCap: 50000, HourlyCap: 10000, WarmupDays: 14, Notes: "Account quota set by AWS; sandbox accounts are limited to 200/day"},
	"sendgrid":  {Name: "SendGrid", DailyCap: 40000, HourlyCap: 5000, WarmupDays: 30, Notes: "Dedicated IPs need their own warm-up"},
	"mailgun":   {Name: "Mailgun", DailyCap: 10000, HourlyCap: 2000, WarmupDays: 30, Notes: "Dedicated IPs need their own warm-up"},
	"ionos":     {Name: "IONOS", DailyCap: 500, HourlyCap: 50, WarmupDays: 30, Notes: "Hosted mailbox"},
	"strato":    {Name: "STRATO", DailyCap: 500, HourlyCap: 50, WarmupDays: 30, Notes: "Hosted mailbox"},
	"transip":   {Name: "TransIP", DailyCap: 500, HourlyCap: 100, WarmupDays: 30, Notes: "Hosted mailbox"},
}

// Unknown is used when the relay host matches nothing we know.
var Unknown = domain.Provider{
	Name:       "Unknown",
	DailyCap:   100,
	HourlyCap:  20,
	WarmupDays: 30,
	Notes:      "Unrecognized relay; conservative limits applied",
}

// hosts maps exact relay hostnames to provider ids.
var hosts = map[string]string{
	"smtp.gmail.com":        "gmail",
	"smtp.googlemail.com":   "gmail",
	"smtp-relay.gmail.com":  "workspace",
	"smtp.office365.com":    "office365",
	"smtp-mail.outlook.com": "outlook",
	"smtp.live.com":         "outlook",
	"smtp.mail.yahoo.com":   "yahoo",
	"smtp.zoho.com":         "zoho",
	"smtp.zoho.eu":          "zoho",
	"smtp.sendgrid.net":     "sendgrid",
	"smtp.mailgun.org":      "mailgun",
	"smtp.eu.mailgun.org":   "mailgun",
	"smtp.ionos.de":         "ionos",
	"smtp.ionos.com":        "ionos",
	"smtp.ionos.nl":         "ionos",
	"smtp.strato.de":        "strato",
	"smtp.strato.com":       "strato",
	"smtp.transip.email":    "transip",
}

// fragments are tried in order when the exact lookup misses.
var fragments = []struct {
	match    []string
	provider string
}{
	{[]string{"gmail", "google"}, "gmail"},
	{[]string{"office365"}, "office365"},
	{[]string{"outlook", "hotmail"}, "outlook"},
	{[]string{"yahoo"}, "yahoo"},
	{[]string{"zoho"}, "zoho"},
	{[]string{"amazonaws"}, "ses"},
	{[]string{"sendgrid"}, "sendgrid"},
	{[]string{"mailgun"}, "mailgun"},
	{[]string{"ionos"}, "ionos"},
	{[]string{"strato"}, "strato"},
	{[]string{"transip"}, "transip"},
}

// DetectProvider maps a relay host to its platform limits.
func DetectProvider(host string) domain.Provider {
	h := strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndex(h, ":"); i >= 0 {
		h = h[:i]
	}
	if id, ok := hosts[h]; ok {
		return providers[id]
	}
	for _, f := range fragments {
		for _, m := range f.match {
			if strings.Contains(h, m) {
				return providers[f.provider]
			}
		}
	}
	return Unknown
}

// Caps resolves the effective hourly and daily ceiling for an identity:
// its own configured limits, falling back to the provider's.
func Caps(id domain.Identity, p domain.Provider) domain.Quota {
	q := domain.Quota{Hourly: id.HourlyLimit, Daily: id.DailyLimit}
	if q.Hourly <= 0 {
		q.Hourly = p.HourlyCap
	}
	if q.Daily <= 0 {
		q.Daily = p.DailyCap
	}
	return q
}
