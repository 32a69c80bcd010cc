package domain

import (
	"testing"
	"time"
)

func TestReviewStatusTransitions(t *testing.T) {
	tests := []struct {
		from    ReviewStatus
		to      ReviewStatus
		allowed bool
	}{
		{StatusPendingReview, StatusSent, true},
		{StatusPendingReview, StatusRejected, true},
		{StatusPendingReview, StatusScheduled, false},
		{StatusAutoScheduled, StatusScheduled, true},
		{StatusAutoScheduled, StatusRejected, true},
		{StatusAutoScheduled, StatusSent, false},
		{StatusScheduled, StatusSent, true},
		{StatusScheduled, StatusRejected, true},
		{StatusSent, StatusRejected, false},
		{StatusSent, StatusSent, false},
		{StatusRejected, StatusSent, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.allowed {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestReviewStatusTerminal(t *testing.T) {
	for _, s := range []ReviewStatus{StatusPendingReview, StatusAutoScheduled, StatusScheduled} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []ReviewStatus{StatusSent, StatusRejected} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestBatchStartTime(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	batch := &MessageBatch{
		Identity: "user-1",
		Messages: []BufferedMessage{
			{Text: "Hi", ReceivedAt: base},
			{Text: "how are you", ReceivedAt: base.Add(10 * time.Second)},
			{Text: "hello?", ReceivedAt: base.Add(30 * time.Second)},
		},
	}

	if got := batch.StartTime(); !got.Equal(base) {
		t.Errorf("StartTime() = %v, want earliest message time %v", got, base)
	}

	empty := &MessageBatch{Identity: "user-2"}
	if !empty.IsEmpty() {
		t.Error("expected empty batch")
	}
	if !empty.StartTime().IsZero() {
		t.Error("empty batch should have zero start time")
	}
}
