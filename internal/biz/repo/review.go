package repo

import (
	"context"
	"time"

	"github.com/shanbot/shanbot/internal/biz/domain"
)

// ReviewRepo is the review queue repository interface
type ReviewRepo interface {
	// Enqueue persists a new drafted reply and returns its review id.
	Enqueue(ctx context.Context, draft *domain.DraftedReply) (string, error)

	// Get returns one review record by id.
	Get(ctx context.Context, id string) (*domain.DraftedReply, error)

	// UpdateStatus records a state transition. note carries an error note
	// or rejection reason, "" to leave it unchanged.
	UpdateStatus(ctx context.Context, id string, status domain.ReviewStatus, note string) error

	// SetSendAt fixes the scheduled send time for a record.
	SetSendAt(ctx context.Context, id string, at time.Time) error

	// ListPending returns all non-terminal records, oldest first.
	ListPending(ctx context.Context) ([]*domain.DraftedReply, error)

	// CleanupTerminal deletes terminal records created before the cutoff,
	// returning the number removed.
	CleanupTerminal(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
