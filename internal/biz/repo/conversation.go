package repo

import (
	"context"
	"time"

	"github.com/shanbot/shanbot/internal/biz/domain"
)

// Well-known per-user flag names
const (
	FlagLastOutboundAt = "last_outbound_at" // unix seconds of the last sent reply
	FlagLastBucket     = "last_response_bucket"
)

// ConversationRepo is the durable conversation store interface
type ConversationRepo interface {
	// GetHistory returns the most recent turns for an identity, oldest first.
	GetHistory(ctx context.Context, identity domain.Identity, limit int) ([]domain.Turn, error)

	// AppendTurn persists one conversation turn.
	AppendTurn(ctx context.Context, identity domain.Identity, role domain.Role, text string, at time.Time) error

	// GetFlag returns the value of a per-user flag, "" if unset.
	GetFlag(ctx context.Context, identity domain.Identity, name string) (string, error)

	// SetFlag sets a per-user flag.
	SetFlag(ctx context.Context, identity domain.Identity, name, value string) error

	Close() error
}
