package normalize

import (
	"time"

	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
)

// Today returns the civil date of now in loc, as midnight UTC.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysRemaining returns max(0, validUntil - today) in whole days, or nil
// when validUntil is absent or not a date.
func DaysRemaining(validUntil *string, today time.Time) *int {
	if validUntil == nil {
		return nil
	}
	expiry, err := time.Parse(isoDate, *validUntil)
	if err != nil {
		return nil
	}

	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	// Both ends are UTC midnights; time.Duration would saturate past ~292 years.
	days := int((expiry.Unix() - start.Unix()) / 86400)
	if days < 0 {
		days = 0
	}
	return &days
}

// StatusFor maps days remaining to a status.
func StatusFor(days *int) core.Status {
	switch {
	case days == nil:
		return core.StatusUnknown
	case *days <= 0:
		return core.StatusExpired
	case *days <= core.WarningDays:
		return core.StatusWarning
	default:
		return core.StatusValid
	}
}
