package scheduler

import "time"

// Sync cadences. A source runs fast while push notifications confirm change,
// at the active cadence while the user is around, and idles otherwise.
const (
	FastInterval   = 1 * time.Minute
	ActiveInterval = 5 * time.Minute
	IdleInterval   = 15 * time.Minute

	// recentWindow is how long a notification or interaction keeps its
	// cadence boost.
	recentWindow = 1 * time.Hour

	// rateLimitBackoff is how long after a rate-limited run the source stays
	// at the idle cadence regardless of other signals.
	rateLimitBackoff = 15 * time.Minute
)

// Signals are the per-user, per-source inputs to the cadence decision.
type Signals struct {
	LastNotificationAt *time.Time
	LastInteractionAt  *time.Time
	LastRateLimitedAt  *time.Time
}

// NextInterval picks the cadence for the next run. Backoff wins over every
// activity signal.
func NextInterval(now time.Time, s Signals) time.Duration {
	if s.LastRateLimitedAt != nil && now.Sub(*s.LastRateLimitedAt) < rateLimitBackoff {
		return IdleInterval
	}
	if s.LastNotificationAt != nil && now.Sub(*s.LastNotificationAt) < recentWindow {
		return FastInterval
	}
	if s.LastInteractionAt != nil && now.Sub(*s.LastInteractionAt) < recentWindow {
		return ActiveInterval
	}
	return IdleInterval
}
