package domain

import "time"

// AutoModePolicy is the process-wide auto-mode setting read by the review
// gate on every drafted reply. Set by an operator action; no automatic
// expiry, it stays active until explicitly toggled off.
type AutoModePolicy struct {
	// Enabled releases drafts automatically instead of parking them for
	// manual approval.
	Enabled bool
	// BaseDelay is the minimum "thinking time" before an automatic send.
	// The effective delay is extended to match the user's own observed
	// response time for the turn.
	BaseDelay time.Duration
}

// ManualPolicy returns the default policy: every draft awaits approval
func ManualPolicy() AutoModePolicy {
	return AutoModePolicy{}
}
