package repo

import "context"

// DrafterRepo is the generative-model collaborator interface.
// Implementations must bound their own per-call latency; callers still
// pass a context for cancellation.
type DrafterRepo interface {
	// Draft returns a free-text reply for the given prompt.
	Draft(ctx context.Context, prompt string) (string, error)
}
