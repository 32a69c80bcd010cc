package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shanbot/shanbot/internal/biz/domain"
	"github.com/shanbot/shanbot/internal/biz/repo"
)

// PromptConfig contains prompt construction configuration
type PromptConfig struct {
	SystemPrompt  string // coach persona
	HistoryMarker string // header above the history section
	CurrentMarker string // header above the current message

	// History truncation config
	MaxHistoryCount   int // max history turns to keep (0 = no limit)
	MaxHistoryMinutes int // max minutes of history to keep (0 = no limit)
}

// DefaultPromptConfig contains default prompt configuration
var DefaultPromptConfig = PromptConfig{
	SystemPrompt: `You are Shannon, an online fitness coach chatting with a client over Instagram DM.

Rules:
1. Output the reply text directly, no meta-descriptions ("Here's a reply:")
2. Match the casual tone of a DM conversation, keep it short
3. Never mention that you are an AI or that messages were combined`,
	HistoryMarker:     "## Conversation so far",
	CurrentMarker:     "## New message from the client",
	MaxHistoryCount:   15,
	MaxHistoryMinutes: 0,
}

// PromptBuilderUsecase builds drafter prompts from persisted history
type PromptBuilderUsecase struct {
	convRepo repo.ConversationRepo
	cfg      PromptConfig
}

// NewPromptBuilderUsecase creates a new prompt builder usecase
func NewPromptBuilderUsecase(convRepo repo.ConversationRepo, cfg PromptConfig) *PromptBuilderUsecase {
	if cfg.SystemPrompt == "" {
		cfg = DefaultPromptConfig
	}
	return &PromptBuilderUsecase{convRepo: convRepo, cfg: cfg}
}

// Build assembles the full drafter prompt for one combined inbound message.
// responseBucket labels how long the user took to come back this turn and
// is surfaced to the model as a behavioral hint.
func (uc *PromptBuilderUsecase) Build(ctx context.Context, identity domain.Identity, combinedText, responseBucket string) (string, error) {
	limit := uc.cfg.MaxHistoryCount
	if limit <= 0 {
		limit = 50
	}

	history, err := uc.convRepo.GetHistory(ctx, identity, limit)
	if err != nil {
		return "", fmt.Errorf("get history: %w", err)
	}
	history = uc.truncateByAge(history)

	var sb strings.Builder
	sb.WriteString(uc.cfg.SystemPrompt)
	sb.WriteString("\n\n")

	if len(history) > 0 {
		sb.WriteString(uc.cfg.HistoryMarker)
		sb.WriteString("\n")
		for _, turn := range history {
			speaker := "Client"
			if turn.Role == domain.RoleAssistant {
				speaker = "Shannon"
			}
			sb.WriteString(fmt.Sprintf("[%s] %s: %s\n", turn.SentAt.Format("15:04"), speaker, turn.Text))
		}
		sb.WriteString("\n")
	}

	if responseBucket != "" {
		sb.WriteString(fmt.Sprintf("(The client came back after %s.)\n\n", responseBucket))
	}

	sb.WriteString(uc.cfg.CurrentMarker)
	sb.WriteString("\n")
	sb.WriteString(combinedText)

	return sb.String(), nil
}

// truncateByAge drops history turns older than the configured window
func (uc *PromptBuilderUsecase) truncateByAge(history []domain.Turn) []domain.Turn {
	if uc.cfg.MaxHistoryMinutes <= 0 {
		return history
	}
	cutoff := time.Now().Add(-time.Duration(uc.cfg.MaxHistoryMinutes) * time.Minute)
	var result []domain.Turn
	for _, turn := range history {
		if turn.SentAt.After(cutoff) {
			result = append(result, turn)
		}
	}
	return result
}
