package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/your-org/recipe-assistant/internal/recipes"
	"github.com/your-org/recipe-assistant/internal/session"
)

// Store persists finished conversations and built recipes in SQLite. It is
// write-mostly: the chat hot path never reads it, only the disconnect and
// recipe-build handlers write to it.
type Store struct {
	db *sql.DB
}

// NewStore opens (and if needed initializes) the archive database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates the archive tables if they don't exist
func (s *Store) initSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS conversations (
			session_id TEXT PRIMARY KEY,
			member_id TEXT,
			turns TEXT NOT NULL,
			turn_count INTEGER NOT NULL,
			archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS saved_recipes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			member_id TEXT,
			title TEXT NOT NULL,
			recipe TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_saved_recipes_member ON saved_recipes(member_id);
	`

	_, err := s.db.Exec(query)
	return err
}

// SaveConversation archives a finished conversation at disconnect time.
func (s *Store) SaveConversation(ctx context.Context, sessionID, memberID string, turns []session.Turn) error {
	payload, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to marshal turns: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO conversations (session_id, member_id, turns, turn_count)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, sessionID, memberID, string(payload), len(turns)); err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}

	return nil
}

// SaveRecipe archives a built recipe.
func (s *Store) SaveRecipe(ctx context.Context, sessionID, memberID string, recipe recipes.Recipe) error {
	payload, err := json.Marshal(recipe)
	if err != nil {
		return fmt.Errorf("failed to marshal recipe: %w", err)
	}

	query := `
		INSERT INTO saved_recipes (session_id, member_id, title, recipe)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, sessionID, memberID, recipe.Title, string(payload)); err != nil {
		return fmt.Errorf("failed to insert recipe: %w", err)
	}

	return nil
}

// SavedRecipe is one archived recipe row.
type SavedRecipe struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	MemberID  string         `json:"member_id"`
	Recipe    recipes.Recipe `json:"recipe"`
	CreatedAt time.Time      `json:"created_at"`
}

// ListRecipes returns a member's archived recipes, newest first.
func (s *Store) ListRecipes(ctx context.Context, memberID string, limit int) ([]SavedRecipe, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, session_id, member_id, recipe, created_at
		FROM saved_recipes
		WHERE member_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipes: %w", err)
	}
	defer rows.Close()

	var saved []SavedRecipe
	for rows.Next() {
		var (
			row     SavedRecipe
			payload string
		)
		if err := rows.Scan(&row.ID, &row.SessionID, &row.MemberID, &payload, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recipe row: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &row.Recipe); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recipe %d: %w", row.ID, err)
		}
		saved = append(saved, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return saved, nil
}
