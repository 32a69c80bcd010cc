package usecase

import "time"

// ComputeDelay returns the effective delay before an automatic send:
// at least the configured base ("thinking time" floor), extended to
// match the user's own observed response time so the bot never appears
// to reply faster than the human it stands in for. A zero or negative
// user response time (unknown last outbound) yields the base delay.
func ComputeDelay(base, userResponseTime time.Duration) time.Duration {
	if userResponseTime < 0 {
		userResponseTime = 0
	}
	if userResponseTime > base {
		return userResponseTime
	}
	return base
}
