// Package local implements repository.Backend for Local Mode: one process,
// one writer, no cross-client sync.
//
// STORAGE LAYOUT:
// The durable side-channel is a single SQLite key/value table. Each
// collection lives under a fixed key as a JSON array of flat records:
//
//	apfiles_users     → [{"id":...,"fullName":...,"phoneNumber":...,"role":...}, ...]
//	apfiles_requests  → [{"id":...,"userId":...,"status":...,"createdAt":...}, ...]
//
// There is no schema version; changing a record's json tags breaks old files.
//
// WRITE PATH:
// Every write builds the next state of the affected collections, persists
// the new blobs in one SQLite transaction, and only then swaps them into the
// in-memory projection. A failed write leaves disk and memory unchanged.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/sakif/apfiles/internal/model"
	"github.com/sakif/apfiles/internal/repository"
)

// Durable blob keys.
const (
	KeyUsers    = "apfiles_users"
	KeyRequests = "apfiles_requests"
)

var _ repository.Backend = (*Store)(nil)

// Store is the Local Mode backend. mu serializes writers and guards the
// projection maps.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger

	mu       sync.RWMutex
	users    map[string]model.User
	requests map[string]model.Request
}

// New opens (or creates) the blob database at dbPath and loads both
// collections into memory. Use ":memory:" in tests.
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("local: opening database: %w", err)
	}

	// An in-memory SQLite database exists per connection; pin the pool to
	// one connection so every statement sees the same data.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("local: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("local: setting WAL mode: %w", err)
	}

	s := &Store{
		conn:     conn,
		logger:   logger,
		users:    make(map[string]model.User),
		requests: make(map[string]model.Request),
	}

	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("local: running migrations: %w", err)
	}

	if err := s.load(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("local store opened",
		slog.String("path", dbPath),
		slog.Int("users", len(s.users)),
		slog.Int("requests", len(s.requests)),
	)
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating kv table: %w", err)
	}
	return nil
}

// load reads both blobs. A missing key is an empty collection.
func (s *Store) load(ctx context.Context) error {
	var users []model.User
	if err := s.readBlob(ctx, KeyUsers, &users); err != nil {
		return err
	}
	var requests []model.Request
	if err := s.readBlob(ctx, KeyRequests, &requests); err != nil {
		return err
	}

	for _, u := range users {
		s.users[u.ID] = u
	}
	for _, r := range requests {
		s.requests[r.ID] = r
	}
	return nil
}

func (s *Store) readBlob(ctx context.Context, key string, out any) error {
	var raw string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("local: reading %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("local: decoding %s: %w", key, err)
	}
	return nil
}

// commit persists the given next states (nil = collection unchanged) in a
// single transaction and then swaps them into the projection. Callers hold
// s.mu for writing.
func (s *Store) commit(ctx context.Context, users map[string]model.User, requests map[string]model.Request) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("local: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if users != nil {
		if err := writeBlob(ctx, tx, KeyUsers, sortedUsers(users)); err != nil {
			return err
		}
	}
	if requests != nil {
		if err := writeBlob(ctx, tx, KeyRequests, sortedRequests(requests)); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("local: committing transaction: %w", err)
	}

	if users != nil {
		s.users = users
	}
	if requests != nil {
		s.requests = requests
	}
	return nil
}

func writeBlob(ctx context.Context, tx *sql.Tx, key string, records any) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("local: encoding %s: %w", key, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(data),
	)
	if err != nil {
		return fmt.Errorf("local: writing %s: %w", key, err)
	}
	return nil
}

// Commit applies a batch as one atomic rewrite of both collections. The
// batch's checks run under the write lock, so no other write can slip in
// between a check and the rewrite.
func (s *Store) Commit(ctx context.Context, batch *repository.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, requests, err := batch.Apply(s.users, s.requests)
	if err != nil {
		return err
	}
	if err := s.commit(ctx, users, requests); err != nil {
		return fmt.Errorf("local: committing batch of %d ops: %w", batch.Len(), err)
	}
	return nil
}
