package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	logs "github.com/danmuck/kiroshi/internal/logging"
)

const (
	getCurrentMigration = `PRAGMA user_version;`
	setCurrentMigration = `PRAGMA user_version = %d;`
)

const createGenerationsTable = `
CREATE TABLE IF NOT EXISTS generations (
id TEXT NOT NULL PRIMARY KEY,
session_id TEXT NOT NULL,
model TEXT NOT NULL,
prompt TEXT NOT NULL,
negative_prompt TEXT NOT NULL,
width INTEGER NOT NULL,
height INTEGER NOT NULL,
quality TEXT NOT NULL,
sampler TEXT NOT NULL,
seed TEXT NOT NULL,
steps INTEGER NOT NULL,
faces INTEGER NOT NULL,
hands INTEGER NOT NULL,
outcome TEXT NOT NULL,
error TEXT NOT NULL,
duration_ms INTEGER NOT NULL,
created_at DATETIME NOT NULL
);`

const createCreatedAtIndex = `
CREATE INDEX IF NOT EXISTS generations_created_at_index
ON generations(created_at);
`

const insertGeneration = `
INSERT INTO generations (id, session_id, model, prompt, negative_prompt, width, height, quality, sampler, seed, steps, faces, hands, outcome, error, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`

const listGenerations = `
SELECT id, session_id, model, prompt, negative_prompt, width, height, quality, sampler, seed, steps, faces, hands, outcome, error, duration_ms, created_at
FROM generations ORDER BY created_at DESC, rowid DESC LIMIT ?;
`

type migration struct {
	name  string
	query string
}

var migrations = []migration{
	{name: "create generations table", query: createGenerationsTable},
	{name: "add generations created_at index", query: createCreatedAtIndex},
}

// Store is the sqlite generation history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates path (and its directory) if needed and migrates the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migrate %s: %w", path, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(ctx context.Context, db *sql.DB) error {
	var current int
	if err := db.QueryRowContext(ctx, getCurrentMigration).Scan(&current); err != nil {
		return err
	}
	required := len(migrations)
	logs.Debugf("history.migrate current=%d required=%d", current, required)
	for n := current + 1; n <= required; n++ {
		if err := execMigration(ctx, db, n); err != nil {
			return fmt.Errorf("migration %d %q: %w", n, migrations[n-1].name, err)
		}
	}
	return nil
}

func execMigration(ctx context.Context, db *sql.DB, n int) error {
	logs.Infof("history.migrate running=%d name=%q", n, migrations[n-1].name)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, migrations[n-1].query); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(setCurrentMigration, n)); err != nil {
		return err
	}
	return tx.Commit()
}

// Create stores e, filling ID and CreatedAt when unset.
func (s *Store) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, insertGeneration,
		e.ID, e.SessionID, e.Model, e.Prompt, e.NegativePrompt,
		e.Width, e.Height, e.Quality, e.Sampler,
		strconv.FormatUint(e.Seed, 10), e.Steps, e.Faces, e.Hands,
		e.Outcome, e.Error, e.Duration.Milliseconds(), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("history: insert %s: %w", e.ID, err)
	}
	return nil
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, listGenerations, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			seed       string
			durationMS int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Model, &e.Prompt, &e.NegativePrompt,
			&e.Width, &e.Height, &e.Quality, &e.Sampler, &seed, &e.Steps,
			&e.Faces, &e.Hands, &e.Outcome, &e.Error, &durationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.Seed, err = strconv.ParseUint(seed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("history: seed %q: %w", seed, err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
