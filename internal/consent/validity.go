package consent

import (
	"regexp"
	"strconv"
	"time"
)

// validityPattern accepts the "N days" disclosure metadata convention
// requesters use. Anything else means no automatic expiry.
var validityPattern = regexp.MustCompile(`(?i)^\s*(\d+)\s*days?\s*$`)

// parseValidity derives a grant expiry from a request's validity field.
// "N days" yields now + N days; an absent or unparseable value yields nil,
// meaning the grant never expires on its own.
func parseValidity(validity string, now time.Time) *time.Time {
	m := validityPattern.FindStringSubmatch(validity)
	if m == nil {
		return nil
	}
	days, err := strconv.Atoi(m[1])
	if err != nil || days <= 0 {
		return nil
	}
	expiresAt := now.Add(time.Duration(days) * 24 * time.Hour)
	return &expiresAt
}
