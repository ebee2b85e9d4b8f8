// Package session persists reconciled records between the upload step and
// the review step of the strict flow.
package session

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ukaji3/certissue-go/internal/session/migrations"
	"github.com/ukaji3/certissue-go/pkg/certissue"
	"github.com/ukaji3/certissue-go/pkg/certissue/models"
)

// DefaultTTL is how long a handed-off session stays readable.
const DefaultTTL = 24 * time.Hour

// ErrNotFound indicates an unknown or expired session.
var ErrNotFound = errors.New("session not found or expired")

// Summary describes a stored session without its records.
type Summary struct {
	ID        string
	Records   int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store is a SQLite-backed handoff store.
type Store struct {
	db     *sql.DB
	path   string
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

var _ certissue.HandoffStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the session lifetime. Zero or less keeps DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens the store at path, creating the file and its directory as
// needed. If path is empty, defaults to ~/.certissue/sessions.db.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".certissue", "sessions.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:     db,
		path:   path,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// Put stores entries under sessionID, replacing any earlier content and
// restarting the session's lifetime.
func (s *Store) Put(ctx context.Context, sessionID string, entries []models.Record) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshalling entries: %w", err)
	}

	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO handoff_sessions (id, payload, records, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			records = excluded.records,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, sessionID, string(payload), len(entries), now, now.Add(s.ttl))
	if err != nil {
		return fmt.Errorf("saving session %s: %w", sessionID, err)
	}

	s.logger.Debug("Session stored",
		zap.String("session", sessionID),
		zap.Int("records", len(entries)),
		zap.Int("bytes", len(payload)))
	return nil
}

// Get returns the entries stored under sessionID in their stored order.
func (s *Store) Get(ctx context.Context, sessionID string) ([]models.Record, error) {
	var payload string
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT payload, expires_at FROM handoff_sessions WHERE id = ?", sessionID,
	).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	if !s.now().Before(expiresAt) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	var entries []models.Record
	if err := json.Unmarshal([]byte(payload), &entries); err != nil {
		return nil, &certissue.DecodeError{File: sessionID, Err: err}
	}
	return entries, nil
}

// Delete removes a session. Deleting an unknown session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM handoff_sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

// List returns the live sessions, newest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, records, created_at, expires_at FROM handoff_sessions
		WHERE expires_at > ?
		ORDER BY created_at DESC, id
	`, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Records, &sum.CreatedAt, &sum.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Purge deletes expired sessions and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM handoff_sessions WHERE expires_at <= ?", s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Expired sessions purged", zap.Int64("count", n))
	}
	return n, nil
}
