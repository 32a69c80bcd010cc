package domain

import "time"

// ReviewStatus represents the disposition state of a drafted reply
type ReviewStatus string

const (
	StatusPendingReview ReviewStatus = "pending_review"
	StatusAutoScheduled ReviewStatus = "auto_scheduled"
	StatusScheduled     ReviewStatus = "scheduled"
	StatusSent          ReviewStatus = "sent"
	StatusRejected      ReviewStatus = "rejected"
)

// IsTerminal checks if the status is a terminal state
func (s ReviewStatus) IsTerminal() bool {
	return s == StatusSent || s == StatusRejected
}

// CanTransition checks whether a transition is allowed by the review
// state machine. Terminal states never transition out.
func (s ReviewStatus) CanTransition(to ReviewStatus) bool {
	switch s {
	case StatusPendingReview:
		return to == StatusSent || to == StatusRejected
	case StatusAutoScheduled:
		return to == StatusScheduled || to == StatusRejected
	case StatusScheduled:
		return to == StatusSent || to == StatusRejected
	default:
		return false
	}
}

// DraftedReply is a candidate outbound message produced by the drafter,
// owned by the review gate until it reaches a terminal state.
type DraftedReply struct {
	ID         string    `json:"id"`
	Identity   Identity  `json:"identity"`
	PromptUsed string    `json:"prompt_used"`
	DraftText  string    `json:"draft_text"`
	CreatedAt  time.Time `json:"created_at"`

	Status    ReviewStatus `json:"status"`
	SendAt    time.Time    `json:"send_at,omitempty"`    // set once scheduled
	ErrorNote string       `json:"error_note,omitempty"` // last delivery/processing error, if any
	Bucket    string       `json:"bucket,omitempty"`     // response-time bucket for this turn
}
