package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shanbot/shanbot/internal/biz/domain"
	"github.com/shanbot/shanbot/internal/biz/repo"
)

// reviewRepo implements the review queue over sqlite
type reviewRepo struct {
	db *sql.DB
}

// NewReviewRepo creates the review repository and its table
func NewReviewRepo(db *sql.DB) (repo.ReviewRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS review_queue (
			id TEXT PRIMARY KEY,
			identity TEXT NOT NULL,
			prompt_used TEXT NOT NULL,
			draft_text TEXT NOT NULL,
			bucket TEXT,
			status TEXT NOT NULL,
			send_at INTEGER,
			error_note TEXT,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create review_queue table: %w", err)
	}
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_review_status ON review_queue(status, created_at)`)

	return &reviewRepo{db: db}, nil
}

// Enqueue persists a new drafted reply and returns its review id
func (r *reviewRepo) Enqueue(ctx context.Context, draft *domain.DraftedReply) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO review_queue (id, identity, prompt_used, draft_text, bucket, status, send_at, error_note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, '', ?)
	`, id, string(draft.Identity), draft.PromptUsed, draft.DraftText, draft.Bucket, string(draft.Status), draft.CreatedAt.Unix())
	if err != nil {
		return "", fmt.Errorf("failed to enqueue review: %w", err)
	}
	return id, nil
}

// Get returns one review record by id
func (r *reviewRepo) Get(ctx context.Context, id string) (*domain.DraftedReply, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, identity, prompt_used, draft_text, bucket, status, send_at, error_note, created_at
		FROM review_queue WHERE id = ?
	`, id)

	record, err := scanReview(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return record, nil
}

// UpdateStatus records a state transition, keeping the existing note
// when note is empty
func (r *reviewRepo) UpdateStatus(ctx context.Context, id string, status domain.ReviewStatus, note string) error {
	var err error
	if note == "" {
		_, err = r.db.ExecContext(ctx, `UPDATE review_queue SET status = ? WHERE id = ?`, string(status), id)
	} else {
		_, err = r.db.ExecContext(ctx, `UPDATE review_queue SET status = ?, error_note = ? WHERE id = ?`, string(status), note, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update review status: %w", err)
	}
	return nil
}

// SetSendAt fixes the scheduled send time for a record
func (r *reviewRepo) SetSendAt(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE review_queue SET send_at = ? WHERE id = ?`, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set send time: %w", err)
	}
	return nil
}

// ListPending returns all non-terminal records, oldest first
func (r *reviewRepo) ListPending(ctx context.Context) ([]*domain.DraftedReply, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, identity, prompt_used, draft_text, bucket, status, send_at, error_note, created_at
		FROM review_queue
		WHERE status NOT IN (?, ?)
		ORDER BY created_at ASC
	`, string(domain.StatusSent), string(domain.StatusRejected))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending reviews: %w", err)
	}
	defer rows.Close()

	var records []*domain.DraftedReply
	for rows.Next() {
		record, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read review rows: %w", err)
	}
	return records, nil
}

// CleanupTerminal deletes terminal records created before the cutoff
func (r *reviewRepo) CleanupTerminal(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM review_queue WHERE created_at < ? AND status IN (?, ?)
	`, before.Unix(), string(domain.StatusSent), string(domain.StatusRejected))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup reviews: %w", err)
	}
	return result.RowsAffected()
}

// Close is a no-op; the shared connection is owned by Repositories
func (r *reviewRepo) Close() error {
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (*domain.DraftedReply, error) {
	var record domain.DraftedReply
	var identity, status string
	var sendAt, createdAt int64
	if err := row.Scan(&record.ID, &identity, &record.PromptUsed, &record.DraftText, &record.Bucket, &status, &sendAt, &record.ErrorNote, &createdAt); err != nil {
		return nil, err
	}
	record.Identity = domain.Identity(identity)
	record.Status = domain.ReviewStatus(status)
	if sendAt > 0 {
		record.SendAt = time.Unix(sendAt, 0)
	}
	record.CreatedAt = time.Unix(createdAt, 0)
	return &record, nil
}
