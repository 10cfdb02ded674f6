package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"grimm.is/policyctl/internal/rules"
)

// Change is one recorded replacement of an owner's collection.
type Change struct {
	Version   int64        `json:"version" yaml:"version"`
	Owner     rules.Owner  `json:"owner" yaml:"owner"`
	Rules     []rules.Rule `json:"rules" yaml:"rules"`
	Timestamp time.Time    `json:"timestamp" yaml:"timestamp"`
}

// Options configures the SQLite store.
type Options struct {
	Path    string           // Database file path (":memory:" for in-memory)
	WALMode bool             // Enable WAL mode for file databases
	Now     func() time.Time // Optional: time source (defaults to time.Now)
}

// DefaultOptions returns sensible defaults.
func DefaultOptions(path string) Options {
	return Options{
		Path:    path,
		WALMode: true,
	}
}

// SQLiteStore is a rules.Store backed by SQLite.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

var _ rules.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at opts.Path.
func NewSQLiteStore(opts Options) (*SQLiteStore, error) {
	dsn := opts.Path
	if opts.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	if opts.WALMode && opts.Path != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &SQLiteStore{db: db, now: now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
		-- Current collection per owner
		CREATE TABLE IF NOT EXISTS collections (
			owner_kind TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			rules_json BLOB NOT NULL,
			version INTEGER NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (owner_kind, owner_id)
		);

		-- Every replacement, oldest first
		CREATE TABLE IF NOT EXISTS changes (
			version INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_kind TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			rules_json BLOB NOT NULL,
			timestamp DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_changes_owner ON changes(owner_kind, owner_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListRules returns the owner's collection. An owner that was never written
// has an empty collection.
func (s *SQLiteStore) ListRules(ctx context.Context, owner rules.Owner) ([]rules.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT rules_json FROM collections WHERE owner_kind = ? AND owner_id = ?",
		string(owner.Kind), owner.ID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return []rules.Rule{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for %s: %w", owner, err)
	}
	return decodeRules(data)
}

// ReplaceRules overwrites the owner's collection and logs the change in the
// same transaction.
func (s *SQLiteStore) ReplaceRules(ctx context.Context, owner rules.Owner, wire []rules.WireRule) ([]rules.Rule, error) {
	stored := fromWire(wire)
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := s.now().UTC()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO changes (owner_kind, owner_id, rules_json, timestamp) VALUES (?, ?, ?, ?)",
		string(owner.Kind), owner.ID, data, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record change: %w", err)
	}
	version, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read change version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO collections (owner_kind, owner_id, rules_json, version, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner_kind, owner_id) DO UPDATE SET
			rules_json = excluded.rules_json,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		string(owner.Kind), owner.ID, data, version, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store rules for %s: %w", owner, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return stored, nil
}

// History returns the recorded replacements for owner, oldest first. A
// limit of zero or less returns everything.
func (s *SQLiteStore) History(ctx context.Context, owner rules.Owner, limit int) ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT version, rules_json, timestamp FROM (
		SELECT version, rules_json, timestamp FROM changes
		WHERE owner_kind = ? AND owner_id = ?
		ORDER BY version DESC`
	args := []any{string(owner.Kind), owner.ID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	query += ") ORDER BY version ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var (
			c    Change
			data []byte
		)
		if err := rows.Scan(&c.Version, &data, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		if c.Rules, err = decodeRules(data); err != nil {
			return nil, err
		}
		c.Owner = owner
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// Owners lists every owner with a stored collection.
func (s *SQLiteStore) Owners(ctx context.Context) ([]rules.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, "SELECT owner_kind, owner_id FROM collections ORDER BY owner_kind, owner_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	var owners []rules.Owner
	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		owners = append(owners, rules.Owner{Kind: rules.OwnerKind(kind), ID: id})
	}
	return owners, rows.Err()
}

func decodeRules(data []byte) ([]rules.Rule, error) {
	var rs []rules.Rule
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to decode stored rules: %w", err)
	}
	if rs == nil {
		rs = []rules.Rule{}
	}
	return rs, nil
}

func fromWire(wire []rules.WireRule) []rules.Rule {
	out := make([]rules.Rule, len(wire))
	for i, w := range wire {
		out[i] = w.Rule()
	}
	return out
}
