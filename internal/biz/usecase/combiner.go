package usecase

import (
	"fmt"
	"strings"

	"github.com/shanbot/shanbot/internal/biz/domain"
)

// Combine merges a drained batch of message fragments into one logical
// message. Exact repeats (after trimming) collapse into a single
// "[Nx] text" entry at the position of the first occurrence; unique
// entries keep their order and are joined by single spaces.
//
// A fragment with no text uses its attachment URL as the text; if both
// are present the URL is appended. Returns "" when every fragment is
// empty, which callers treat as nothing to process.
func Combine(messages []domain.BufferedMessage) string {
	var order []string
	counts := make(map[string]int)

	for _, msg := range messages {
		text := fragmentText(msg)
		if text == "" {
			continue
		}
		if counts[text] == 0 {
			order = append(order, text)
		}
		counts[text]++
	}

	parts := make([]string, 0, len(order))
	for _, text := range order {
		if n := counts[text]; n > 1 {
			parts = append(parts, fmt.Sprintf("[%dx] %s", n, text))
		} else {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " ")
}

// fragmentText extracts the text-or-placeholder for one fragment
func fragmentText(msg domain.BufferedMessage) string {
	text := strings.TrimSpace(msg.Text)
	ref := strings.TrimSpace(msg.AttachmentRef)

	switch {
	case text == "" && ref == "":
		return ""
	case text == "":
		return ref
	case ref == "":
		return text
	default:
		return text + " " + ref
	}
}
