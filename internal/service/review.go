package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shanbot/shanbot/internal/biz/domain"
	"github.com/shanbot/shanbot/internal/biz/repo"
	"github.com/shanbot/shanbot/internal/biz/usecase"
)

// PolicyStore holds the process-wide auto-mode policy. Operators toggle
// it through the admin API; the pipeline reads it per drafted reply.
type PolicyStore struct {
	mu     sync.RWMutex
	policy domain.AutoModePolicy
}

// NewPolicyStore creates a policy store with the given initial policy
func NewPolicyStore(initial domain.AutoModePolicy) *PolicyStore {
	return &PolicyStore{policy: initial}
}

// Get returns the current policy
func (p *PolicyStore) Get() domain.AutoModePolicy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.policy
}

// Set replaces the current policy
func (p *PolicyStore) Set(policy domain.AutoModePolicy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policy = policy
}

// ReviewGate decides the disposition of each drafted reply and owns its
// state transitions until a terminal state.
type ReviewGate struct {
	reviewRepo  repo.ReviewRepo
	delivery    repo.DeliveryRepo
	log         zerolog.Logger
	sendTimeout time.Duration

	// onSent is invoked after a successful delivery so the pipeline can
	// record the assistant turn and the last-outbound timestamp.
	onSent func(draft *domain.DraftedReply)

	mu       sync.Mutex
	timers   map[string]*time.Timer // review id -> pending auto send
	inFlight map[string]bool        // review ids with a send or reject in progress
}

// NewReviewGate creates a new review gate
func NewReviewGate(reviewRepo repo.ReviewRepo, delivery repo.DeliveryRepo, sendTimeout time.Duration, log zerolog.Logger) *ReviewGate {
	return &ReviewGate{
		reviewRepo:  reviewRepo,
		delivery:    delivery,
		sendTimeout: sendTimeout,
		log:         log.With().Str("component", "review").Logger(),
		timers:      make(map[string]*time.Timer),
		inFlight:    make(map[string]bool),
	}
}

// SetSentCallback sets the post-delivery callback
func (g *ReviewGate) SetSentCallback(callback func(draft *domain.DraftedReply)) {
	g.onSent = callback
}

// Submit persists a new drafted reply and decides its disposition.
// userResponseTime is how long the user took to come back this turn; in
// auto mode the send delay is extended to at least match it.
func (g *ReviewGate) Submit(ctx context.Context, draft *domain.DraftedReply, policy domain.AutoModePolicy, userResponseTime time.Duration) (domain.ReviewStatus, error) {
	if draft.Identity == "" {
		return "", fmt.Errorf("draft has no identity")
	}

	if !policy.Enabled {
		draft.Status = domain.StatusPendingReview
		id, err := g.reviewRepo.Enqueue(ctx, draft)
		if err != nil {
			return "", fmt.Errorf("enqueue review: %w", err)
		}
		draft.ID = id
		g.log.Info().Str("review", id).Str("identity", string(draft.Identity)).Msg("draft parked for review")
		return domain.StatusPendingReview, nil
	}

	draft.Status = domain.StatusAutoScheduled
	id, err := g.reviewRepo.Enqueue(ctx, draft)
	if err != nil {
		return "", fmt.Errorf("enqueue review: %w", err)
	}
	draft.ID = id

	delay := usecase.ComputeDelay(policy.BaseDelay, userResponseTime)
	sendAt := time.Now().Add(delay)
	if err := g.reviewRepo.SetSendAt(ctx, id, sendAt); err != nil {
		return "", fmt.Errorf("set send time: %w", err)
	}
	if err := g.reviewRepo.UpdateStatus(ctx, id, domain.StatusScheduled, ""); err != nil {
		return "", fmt.Errorf("schedule review: %w", err)
	}
	draft.Status = domain.StatusScheduled
	draft.SendAt = sendAt

	g.mu.Lock()
	g.timers[id] = time.AfterFunc(delay, func() {
		g.fireScheduled(id)
	})
	g.mu.Unlock()

	g.log.Info().
		Str("review", id).
		Str("identity", string(draft.Identity)).
		Dur("delay", delay).
		Msg("draft auto-scheduled")
	return domain.StatusScheduled, nil
}

// Approve releases a parked or scheduled draft immediately. Calling it
// on a terminal record is a no-op that reports the existing state.
func (g *ReviewGate) Approve(ctx context.Context, id string) (domain.ReviewStatus, error) {
	g.cancelTimer(id)
	return g.send(ctx, id)
}

// Reject discards a draft. A scheduled auto send is reliably cancelled.
// Terminal records report their existing state without side effects.
// While a delivery for the record is in flight the rejection is refused
// with an error; once the delivery settles a retry reports the outcome.
func (g *ReviewGate) Reject(ctx context.Context, id, reason string) (domain.ReviewStatus, error) {
	g.cancelTimer(id)
	if !g.claim(id) {
		return "", fmt.Errorf("review %s has a delivery in flight", id)
	}
	defer g.release(id)

	record, err := g.reviewRepo.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get review: %w", err)
	}
	if record.Status.IsTerminal() {
		return record.Status, nil
	}

	if err := g.reviewRepo.UpdateStatus(ctx, id, domain.StatusRejected, reason); err != nil {
		return "", fmt.Errorf("reject review: %w", err)
	}
	g.log.Info().Str("review", id).Str("reason", reason).Msg("draft rejected")
	return domain.StatusRejected, nil
}

// ListPending returns all non-terminal review records
func (g *ReviewGate) ListPending(ctx context.Context) ([]*domain.DraftedReply, error) {
	return g.reviewRepo.ListPending(ctx)
}

// fireScheduled runs when an auto-send timer elapses
func (g *ReviewGate) fireScheduled(id string) {
	g.mu.Lock()
	delete(g.timers, id)
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), g.sendTimeout+5*time.Second)
	defer cancel()

	status, err := g.send(ctx, id)
	if err != nil {
		g.log.Error().Err(err).Str("review", id).Msg("scheduled send failed")
		return
	}
	if status != domain.StatusSent {
		g.log.Debug().Str("review", id).Str("status", string(status)).Msg("scheduled send superseded")
	}
}

// send delivers the draft, retrying once on transient failure. On
// persistent failure the record keeps its non-terminal status with an
// error note so an operator can retry it by hand. The record's status
// is re-read under the in-flight claim, so a reject that landed before
// the claim wins and the delivery is skipped; a terminal record is a
// no-op reporting its state.
func (g *ReviewGate) send(ctx context.Context, id string) (domain.ReviewStatus, error) {
	if !g.claim(id) {
		record, err := g.reviewRepo.Get(ctx, id)
		if err != nil {
			return "", fmt.Errorf("get review: %w", err)
		}
		return record.Status, nil
	}
	defer g.release(id)

	record, err := g.reviewRepo.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get review: %w", err)
	}
	if !record.Status.CanTransition(domain.StatusSent) {
		return record.Status, nil
	}

	err = g.sendOnce(ctx, record)
	if err != nil {
		g.log.Warn().Err(err).Str("review", record.ID).Msg("delivery failed, retrying once")
		err = g.sendOnce(ctx, record)
	}
	if err != nil {
		note := fmt.Sprintf("delivery failed: %v", err)
		if uerr := g.reviewRepo.UpdateStatus(ctx, record.ID, record.Status, note); uerr != nil {
			g.log.Error().Err(uerr).Str("review", record.ID).Msg("failed to record delivery error")
		}
		return record.Status, fmt.Errorf("deliver reply: %w", err)
	}

	if err := g.reviewRepo.UpdateStatus(ctx, record.ID, domain.StatusSent, ""); err != nil {
		return "", fmt.Errorf("mark sent: %w", err)
	}
	record.Status = domain.StatusSent

	if g.onSent != nil {
		g.onSent(record)
	}
	g.log.Info().Str("review", record.ID).Str("identity", string(record.Identity)).Msg("reply sent")
	return domain.StatusSent, nil
}

func (g *ReviewGate) sendOnce(ctx context.Context, record *domain.DraftedReply) error {
	sendCtx, cancel := context.WithTimeout(ctx, g.sendTimeout)
	defer cancel()
	return g.delivery.Send(sendCtx, record.Identity, record.DraftText)
}

// claim marks a review as having an operation in progress. Sends and
// rejects claim the same slot, so a delivery and a rejection can never
// interleave on one record.
func (g *ReviewGate) claim(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[id] {
		return false
	}
	g.inFlight[id] = true
	return true
}

func (g *ReviewGate) release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, id)
}

func (g *ReviewGate) cancelTimer(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if timer, ok := g.timers[id]; ok {
		timer.Stop()
		delete(g.timers, id)
	}
}

// Stop cancels all pending auto-send timers
func (g *ReviewGate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, timer := range g.timers {
		timer.Stop()
		delete(g.timers, id)
	}
	g.log.Info().Msg("stopped")
}
