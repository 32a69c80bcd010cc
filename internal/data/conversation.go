package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shanbot/shanbot/internal/biz/domain"
	"github.com/shanbot/shanbot/internal/biz/repo"
)

// conversationRepo implements the conversation store over sqlite
type conversationRepo struct {
	db *sql.DB
}

// NewConversationRepo creates the conversation repository and its tables
func NewConversationRepo(db *sql.DB) (repo.ConversationRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversation_turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			identity TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			sent_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation_turns table: %w", err)
	}
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_turns_identity_sent ON conversation_turns(identity, sent_at)`)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS user_flags (
			identity TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (identity, name)
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create user_flags table: %w", err)
	}

	return &conversationRepo{db: db}, nil
}

// GetHistory returns the most recent turns for an identity, oldest first
func (r *conversationRepo) GetHistory(ctx context.Context, identity domain.Identity, limit int) ([]domain.Turn, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, identity, role, text, sent_at
		FROM conversation_turns
		WHERE identity = ?
		ORDER BY sent_at DESC, id DESC
		LIMIT ?
	`, string(identity), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var turn domain.Turn
		var sentAt int64
		if err := rows.Scan(&turn.ID, &turn.Identity, &turn.Role, &turn.Text, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.SentAt = time.Unix(sentAt, 0)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}

	// Query is newest-first for the LIMIT; callers want oldest first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// AppendTurn persists one conversation turn
func (r *conversationRepo) AppendTurn(ctx context.Context, identity domain.Identity, role domain.Role, text string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversation_turns (identity, role, text, sent_at)
		VALUES (?, ?, ?, ?)
	`, string(identity), string(role), text, at.Unix())
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// GetFlag returns a per-user flag value, "" if unset
func (r *conversationRepo) GetFlag(ctx context.Context, identity domain.Identity, name string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `
		SELECT value FROM user_flags WHERE identity = ? AND name = ?
	`, string(identity), name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get flag %s: %w", name, err)
	}
	return value, nil
}

// SetFlag sets a per-user flag
func (r *conversationRepo) SetFlag(ctx context.Context, identity domain.Identity, name, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO user_flags (identity, name, value, updated_at)
		VALUES (?, ?, ?, ?)
	`, string(identity), name, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set flag %s: %w", name, err)
	}
	return nil
}

// Close is a no-op; the shared connection is owned by Repositories
func (r *conversationRepo) Close() error {
	return nil
}
