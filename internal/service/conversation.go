package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/shanbot/shanbot/internal/biz/domain"
	"github.com/shanbot/shanbot/internal/biz/repo"
	"github.com/shanbot/shanbot/internal/biz/usecase"
)

// ConversationService turns a drained message batch into a reviewed
// draft reply: combine, classify the response gap, persist the inbound
// turn, draft, and hand off to the review gate.
type ConversationService struct {
	convRepo     repo.ConversationRepo
	drafter      repo.DrafterRepo
	promptUC     *usecase.PromptBuilderUsecase
	gate         *ReviewGate
	policies     *PolicyStore
	draftTimeout time.Duration
	log          zerolog.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(
	convRepo repo.ConversationRepo,
	drafter repo.DrafterRepo,
	promptUC *usecase.PromptBuilderUsecase,
	gate *ReviewGate,
	policies *PolicyStore,
	draftTimeout time.Duration,
	log zerolog.Logger,
) *ConversationService {
	return &ConversationService{
		convRepo:     convRepo,
		drafter:      drafter,
		promptUC:     promptUC,
		gate:         gate,
		policies:     policies,
		draftTimeout: draftTimeout,
		log:          log.With().Str("component", "conversation").Logger(),
	}
}

// ProcessBatch is the debounce drain callback. A failure for one
// identity is logged and surfaced here only; it never touches another
// identity's state.
func (s *ConversationService) ProcessBatch(batch *domain.MessageBatch) {
	logger := s.log.With().Str("identity", string(batch.Identity)).Logger()

	combined := usecase.Combine(batch.Messages)
	if combined == "" {
		logger.Debug().Msg("batch combined to nothing, skipping")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.draftTimeout*2+30*time.Second)
	defer cancel()

	userResponseTime, bucket := s.responseGap(ctx, batch)
	logger.Info().
		Int("fragments", len(batch.Messages)).
		Str("bucket", bucket).
		Msg("processing batch")

	// The prompt is built before the inbound turn is persisted, so the
	// fetched history carries the new message only in the current section.
	prompt, err := s.promptUC.Build(ctx, batch.Identity, combined, bucket)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build prompt")
		return
	}

	if err := s.convRepo.AppendTurn(ctx, batch.Identity, domain.RoleUser, combined, batch.StartTime()); err != nil {
		logger.Error().Err(err).Msg("failed to persist inbound turn")
		return
	}

	text, err := s.draftWithRetry(ctx, prompt)
	if err != nil {
		// No review entry is created: nothing claims a draft exists.
		logger.Error().Err(err).Msg("drafter failed, no reply drafted")
		return
	}
	if text == "" {
		logger.Info().Msg("drafter returned empty reply, nothing to send")
		return
	}

	draft := &domain.DraftedReply{
		Identity:   batch.Identity,
		PromptUsed: prompt,
		DraftText:  text,
		CreatedAt:  time.Now(),
		Bucket:     bucket,
	}

	status, err := s.gate.Submit(ctx, draft, s.policies.Get(), userResponseTime)
	if err != nil {
		logger.Error().Err(err).Msg("review submission failed")
		return
	}
	logger.Info().Str("review", draft.ID).Str("status", string(status)).Msg("draft submitted")
}

// RecordSent is the review gate's post-delivery callback: persist the
// assistant turn and update the last-outbound bookkeeping flags.
func (s *ConversationService) RecordSent(draft *domain.DraftedReply) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	if err := s.convRepo.AppendTurn(ctx, draft.Identity, domain.RoleAssistant, draft.DraftText, now); err != nil {
		s.log.Error().Err(err).Str("identity", string(draft.Identity)).Msg("failed to persist outbound turn")
	}
	if err := s.convRepo.SetFlag(ctx, draft.Identity, repo.FlagLastOutboundAt, strconv.FormatInt(now.Unix(), 10)); err != nil {
		s.log.Error().Err(err).Str("identity", string(draft.Identity)).Msg("failed to update last outbound flag")
	}
	if draft.Bucket != "" {
		if err := s.convRepo.SetFlag(ctx, draft.Identity, repo.FlagLastBucket, draft.Bucket); err != nil {
			s.log.Error().Err(err).Str("identity", string(draft.Identity)).Msg("failed to update bucket flag")
		}
	}
}

// responseGap computes how long the user took to come back, measured
// from the last outbound reply to the earliest message of this batch.
// Unknown last outbound yields a zero gap and no bucket.
func (s *ConversationService) responseGap(ctx context.Context, batch *domain.MessageBatch) (time.Duration, string) {
	value, err := s.convRepo.GetFlag(ctx, batch.Identity, repo.FlagLastOutboundAt)
	if err != nil || value == "" {
		return 0, ""
	}
	lastOutbound, err := strconv.ParseInt(value, 10, 64)
	if err != nil || lastOutbound <= 0 {
		return 0, ""
	}

	gap := batch.StartTime().Sub(time.Unix(lastOutbound, 0))
	if gap < 0 {
		gap = 0
	}
	return gap, usecase.ClassifyResponseTime(gap.Seconds())
}

// draftWithRetry calls the drafter with a bounded timeout, retrying
// once immediately on failure before surfacing the error.
func (s *ConversationService) draftWithRetry(ctx context.Context, prompt string) (string, error) {
	text, err := s.draftOnce(ctx, prompt)
	if err == nil {
		return text, nil
	}
	s.log.Warn().Err(err).Msg("drafter failed, retrying once")

	text, retryErr := s.draftOnce(ctx, prompt)
	if retryErr != nil {
		return "", fmt.Errorf("draft reply: %w", retryErr)
	}
	return text, nil
}

func (s *ConversationService) draftOnce(ctx context.Context, prompt string) (string, error) {
	draftCtx, cancel := context.WithTimeout(ctx, s.draftTimeout)
	defer cancel()
	return s.drafter.Draft(draftCtx, prompt)
}
