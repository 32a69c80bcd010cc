package domain

import "time"

// AttachmentKind represents the kind of media attached to a message
type AttachmentKind string

const (
	AttachmentNone  AttachmentKind = ""
	AttachmentImage AttachmentKind = "image"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentVideo AttachmentKind = "video"
	AttachmentShare AttachmentKind = "share" // shared post / story mention
)

// Identity is the stable key for one end-user conversation thread
// (the platform subscriber id)
type Identity string

// InboundMessage is the validated boundary form of a webhook event.
// The server layer produces it; the core never inspects raw payloads.
type InboundMessage struct {
	EventID        string // platform event id, used for dedup only
	Identity       Identity
	Text           string
	AttachmentRef  string // URL, empty if none
	AttachmentKind AttachmentKind
	ReceivedAt     time.Time
}

// BufferedMessage is one inbound fragment awaiting the debounce drain.
// Immutable once created.
type BufferedMessage struct {
	Identity       Identity
	Text           string
	AttachmentRef  string
	AttachmentKind AttachmentKind
	ReceivedAt     time.Time
}

// FromInbound converts a validated inbound message into a buffer fragment
func FromInbound(msg *InboundMessage) BufferedMessage {
	return BufferedMessage{
		Identity:       msg.Identity,
		Text:           msg.Text,
		AttachmentRef:  msg.AttachmentRef,
		AttachmentKind: msg.AttachmentKind,
		ReceivedAt:     msg.ReceivedAt,
	}
}

// MessageBatch is the ordered set of fragments drained for one identity
type MessageBatch struct {
	Identity Identity
	Messages []BufferedMessage
}

// IsEmpty checks whether the batch has no fragments
func (b *MessageBatch) IsEmpty() bool {
	return len(b.Messages) == 0
}

// StartTime returns the timestamp of the earliest fragment in the batch.
// Response-time accounting reflects when the user first tried to get
// attention, not when they stopped typing.
func (b *MessageBatch) StartTime() time.Time {
	if len(b.Messages) == 0 {
		return time.Time{}
	}
	earliest := b.Messages[0].ReceivedAt
	for _, m := range b.Messages[1:] {
		if m.ReceivedAt.Before(earliest) {
			earliest = m.ReceivedAt
		}
	}
	return earliest
}

// Role identifies who authored a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one persisted conversation entry
type Turn struct {
	ID       int64
	Identity Identity
	Role     Role
	Text     string
	SentAt   time.Time
}
