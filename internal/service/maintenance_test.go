package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shanbot/shanbot/internal/biz/domain"
)

func TestMaintenance_SweepFlagsStuckRecords(t *testing.T) {
	review := newMockReviewRepo()
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)

	// Scheduled send whose fire time passed: delivery must have failed.
	overdueID, _ := review.Enqueue(ctx, &domain.DraftedReply{
		Identity: "user-1", DraftText: "a", Status: domain.StatusScheduled, CreatedAt: old,
	})
	_ = review.SetSendAt(ctx, overdueID, old)

	// Auto-scheduled record that never got a send time.
	strandedID, _ := review.Enqueue(ctx, &domain.DraftedReply{
		Identity: "user-2", DraftText: "b", Status: domain.StatusAutoScheduled, CreatedAt: old,
	})

	// Parked for manual review: waiting on the operator is not stuck.
	parkedID, _ := review.Enqueue(ctx, &domain.DraftedReply{
		Identity: "user-3", DraftText: "c", Status: domain.StatusPendingReview, CreatedAt: old,
	})

	// Scheduled in the future: not due yet.
	upcomingID, _ := review.Enqueue(ctx, &domain.DraftedReply{
		Identity: "user-4", DraftText: "d", Status: domain.StatusScheduled, CreatedAt: time.Now(),
	})
	_ = review.SetSendAt(ctx, upcomingID, time.Now().Add(time.Minute))

	var buf bytes.Buffer
	svc := NewMaintenanceService(review, 24*time.Hour, zerolog.New(&buf))
	svc.sweepStuck()

	out := buf.String()
	if !strings.Contains(out, overdueID) {
		t.Errorf("overdue scheduled record %s not flagged:\n%s", overdueID, out)
	}
	if !strings.Contains(out, strandedID) {
		t.Errorf("stranded auto_scheduled record %s not flagged:\n%s", strandedID, out)
	}
	if strings.Contains(out, parkedID) {
		t.Errorf("pending_review record %s flagged as stuck:\n%s", parkedID, out)
	}
	if strings.Contains(out, upcomingID) {
		t.Errorf("future scheduled record %s flagged as stuck:\n%s", upcomingID, out)
	}
}
