package logger

import "strings"

const mask = "***"

// RedactEmail keeps the first two characters of a mailbox and its domain,
// enough to tell relay logins apart in logs. Mailboxes of two characters
// or fewer lose the whole local part, and anything that is not a single
// local@domain pair is masked entirely.
func RedactEmail(addr string) string {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return mask + "@" + mask
	}
	if len(local) <= 2 {
		return mask + "@" + domain
	}
	return local[:2] + mask + "@" + domain
}
