// Package store owns the SQLite property graph: typed node and edge tables
// keyed by natural keys, merge primitives for the upsert engine, and the
// read-only query surface.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Game is a game node, the root of the ownership tree.
type Game struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Chapter is a chapter node.
type Chapter struct {
	ID      int64  `json:"id"`
	GameID  int64  `json:"game_id"`
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// ChapterLink is one FOLLOWED_BY edge.
type ChapterLink struct {
	GameID        int64 `json:"game_id"`
	FromChapterID int64 `json:"from_chapter_id"`
	ToChapterID   int64 `json:"to_chapter_id"`
}

// Location is a location node, shared across chapters within a game.
type Location struct {
	ID          int64  `json:"id"`
	GameID      int64  `json:"game_id"`
	Name        string `json:"name"`
	NormName    string `json:"norm_name"`
	Description string `json:"description"`
}

// Character is a character node, shared across chapters within a game.
type Character struct {
	ID       int64    `json:"id"`
	GameID   int64    `json:"game_id"`
	Name     string   `json:"name"`
	NormName string   `json:"norm_name"`
	Role     string   `json:"role"`
	Traits   []string `json:"traits"`
}

// CharacterEvent is an event joined back to its chapter, as returned by the
// participation query surface.
type CharacterEvent struct {
	Description   string `json:"description"`
	ChapterNumber int    `json:"chapter_number"`
	ChapterTitle  string `json:"chapter_title"`
}

// GraphStats summarizes node and edge counts for one game.
type GraphStats struct {
	Chapters       int `json:"chapters"`
	Goals          int `json:"goals"`
	Events         int `json:"events"`
	Challenges     int `json:"challenges"`
	Locations      int `json:"locations"`
	Characters     int `json:"characters"`
	ChapterLinks   int `json:"chapter_links"`
	Participations int `json:"participations"`
}

// ExtractionRun is one row of the extraction audit log.
type ExtractionRun struct {
	RunUUID       string `json:"run_uuid"`
	GameID        int64  `json:"game_id"`
	Scope         string `json:"scope"`
	Chapters      int    `json:"chapters"`
	Entities      int    `json:"entities"`
	Relationships int    `json:"relationships"`
}

// Store wraps the SQLite database for all storygraph persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and initialises
// the schema.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// NormalizeName is the canonical form for character and location natural
// keys: lowercase with whitespace collapsed. "Aren" and "aren " normalize
// to the same key.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// WithTx runs fn inside a transaction, committing on nil and rolling back
// on error. Tx exposes the merge primitives the upsert engine composes into
// its per-chapter transaction scope.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	wrapped := &Tx{tx: tx, ctx: ctx}
	if err := fn(wrapped); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// marshalTraits serializes a trait list, treating nil as empty.
func marshalTraits(traits []string) (string, error) {
	if traits == nil {
		traits = []string{}
	}
	data, err := json.Marshal(traits)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalTraits(raw string) []string {
	if raw == "" {
		return nil
	}
	var traits []string
	if err := json.Unmarshal([]byte(raw), &traits); err != nil {
		return nil
	}
	if len(traits) == 0 {
		return nil
	}
	return traits
}

// LogExtractionRun records one extraction pass in the audit log.
func (s *Store) LogExtractionRun(ctx context.Context, run ExtractionRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extraction_runs (run_uuid, game_id, scope, chapters, entities, relationships)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.RunUUID, run.GameID, run.Scope, run.Chapters, run.Entities, run.Relationships)
	return err
}

// DeleteGame removes one game and, via cascading foreign keys, every node
// and edge it owns. Destructive; callers gate it explicitly.
func (s *Store) DeleteGame(ctx context.Context, title string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM games WHERE title = ?", title)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ClearAll removes every game and all dependent data from the store.
// Destructive; callers gate it explicitly.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		for _, table := range []string{"games", "extraction_runs"} {
			if _, err := tx.tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		return nil
	})
}
