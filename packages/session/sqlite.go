package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// SQLiteStore persists sessions in a SQLite database, mirroring a database
// session driver on the host application. Use ":memory:" as the path for an
// ephemeral store.
type SQLiteStore struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// NewSQLiteStore opens (and migrates) a SQLite-backed session store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to session database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sessions table: %w", err)
	}

	return &SQLiteStore{
		db:           db,
		queryTimeout: 30 * time.Second,
	}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, values map[string]any) (string, error) {
	id := uuid.New().String()

	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode session values: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `INSERT INTO sessions (id, data) VALUES (?, ?)`, id, string(data))
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	return id, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrSessionNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var values map[string]any
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("failed to decode session values: %w", err)
	}
	return values, nil
}

func (s *SQLiteStore) Put(ctx context.Context, id, key string, value any) error {
	values, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	values[key] = value

	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode session values: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `UPDATE sessions SET data = ? WHERE id = ?`, string(data), id)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Destroy(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}
