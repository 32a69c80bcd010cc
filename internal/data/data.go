package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shanbot/shanbot/internal/biz/repo"
)

// Repositories contains all repositories
type Repositories struct {
	Conversation repo.ConversationRepo
	Review       repo.ReviewRepo
	Drafter      repo.DrafterRepo
	Delivery     repo.DeliveryRepo

	db *sql.DB
}

// NewRepositories creates all repositories over one sqlite database
func NewRepositories(dbPath string, drafter *GeminiDrafter, delivery *ManyChatSender) (*Repositories, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	convRepo, err := NewConversationRepo(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	reviewRepo, err := NewReviewRepo(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Repositories{
		Conversation: convRepo,
		Review:       reviewRepo,
		Drafter:      drafter,
		Delivery:     delivery,
		db:           db,
	}, nil
}

// Close closes the shared database connection
func (r *Repositories) Close() error {
	return r.db.Close()
}

// openDB opens the sqlite database, creating its directory if needed
func openDB(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; sqlite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}
