package staffapply

import "time"

const fallbackCooldown = 24 * time.Hour

// parseCooldown parses a configured cooldown duration string.
// Empty or unparseable values fall back to 24h.
func parseCooldown(s string) time.Duration {
	if s == "" {
		return fallbackCooldown
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallbackCooldown
	}
	return d
}

// cooldownRemaining returns the time left before a user may submit
// again, given their last submission timestamp in unix ms. Zero means
// the gate is open.
func cooldownRemaining(
	lastApplicationTime int64,
	cooldown time.Duration,
	now time.Time,
) time.Duration {
	remaining := time.UnixMilli(lastApplicationTime).Add(cooldown).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// remainingHoursMinutes decomposes a remaining duration into whole
// hours and leftover whole minutes for display.
func remainingHoursMinutes(remaining time.Duration) (hours int64, minutes int64) {
	ms := remaining.Milliseconds()
	hours = ms / 3_600_000
	minutes = (ms % 3_600_000) / 60_000
	return hours, minutes
}
