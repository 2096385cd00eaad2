package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS dedup (
	activity_id   TEXT PRIMARY KEY,
	actor_uri     TEXT NOT NULL,
	type          TEXT NOT NULL,
	first_seen_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS dedup_first_seen ON dedup(first_seen_at);

CREATE TABLE IF NOT EXISTS relationships (
	follower TEXT NOT NULL,
	followee TEXT NOT NULL,
	state    TEXT NOT NULL,
	PRIMARY KEY (follower, followee)
);

CREATE TABLE IF NOT EXISTS outbox (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	activity_id TEXT NOT NULL,
	actor_uri   TEXT NOT NULL,
	payload     BLOB NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS outbox_actor ON outbox(actor_uri, seq);

CREATE TABLE IF NOT EXISTS dead_letters (
	task_id     TEXT PRIMARY KEY,
	inbox_url   TEXT NOT NULL,
	activity_id TEXT NOT NULL,
	payload     BLOB NOT NULL,
	attempts    INTEGER NOT NULL,
	reason      TEXT NOT NULL,
	failed_at   INTEGER NOT NULL
);
`

// SQLiteConfig holds the parameters for opening a SQLite-backed store.
type SQLiteConfig struct {
	// Path is the filesystem path to the database file. The parent
	// directory must exist. ":memory:" gives an in-memory database
	// (pool size must then be 1).
	Path string

	// PoolSize is the number of connections. Defaults to 4. SQLite
	// serializes writes regardless; extra connections help concurrent
	// reads.
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// SQLiteStore implements Store on a SQLite database with a fixed-size
// connection pool. Safe for concurrent use; each call takes its own
// connection.
type SQLiteStore struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database and bootstraps the
// schema on every connection.
func OpenSQLite(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	if cfg.Path == ":memory:" {
		poolSize = 1
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			if err := sqlitex.ExecuteTransient(conn, "PRAGMA journal_mode = WAL;", nil); err != nil {
				return err
			}
			if err := sqlitex.ExecuteTransient(conn, "PRAGMA foreign_keys = ON;", nil); err != nil {
				return err
			}
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", cfg.Path, err)
	}

	logger.Info("sqlite store opened", "path", cfg.Path, "pool_size", poolSize)
	return &SQLiteStore{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}

func (s *SQLiteStore) MarkSeen(ctx context.Context, rec DedupRecord) (bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, fmt.Errorf("store: mark seen: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT OR IGNORE INTO dedup (activity_id, actor_uri, type, first_seen_at) VALUES (?, ?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{rec.ActivityID, rec.ActorURI, rec.Type, rec.FirstSeenAt.UnixMilli()},
		})
	if err != nil {
		return false, fmt.Errorf("store: mark seen: %w", err)
	}
	// No row inserted means the ID was already present.
	return conn.Changes() == 0, nil
}

func (s *SQLiteStore) EvictBefore(ctx context.Context, cutoff time.Time) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: evict dedup: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"DELETE FROM dedup WHERE first_seen_at < ?",
		&sqlitex.ExecOptions{Args: []any{cutoff.UnixMilli()}})
	if err != nil {
		return 0, fmt.Errorf("store: evict dedup: %w", err)
	}
	return conn.Changes(), nil
}

func (s *SQLiteStore) GetRelationship(ctx context.Context, follower, followee string) (string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", fmt.Errorf("store: get relationship: %w", err)
	}
	defer s.pool.Put(conn)

	var state string
	err = sqlitex.Execute(conn,
		"SELECT state FROM relationships WHERE follower = ? AND followee = ?",
		&sqlitex.ExecOptions{
			Args: []any{follower, followee},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				state = stmt.ColumnText(0)
				return nil
			},
		})
	if err != nil {
		return "", fmt.Errorf("store: get relationship: %w", err)
	}
	return state, nil
}

func (s *SQLiteStore) SetRelationship(ctx context.Context, follower, followee, state string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: set relationship: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO relationships (follower, followee, state) VALUES (?, ?, ?)
		 ON CONFLICT (follower, followee) DO UPDATE SET state = excluded.state`,
		&sqlitex.ExecOptions{Args: []any{follower, followee, state}})
	if err != nil {
		return fmt.Errorf("store: set relationship: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteRelationship(ctx context.Context, follower, followee string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: delete relationship: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"DELETE FROM relationships WHERE follower = ? AND followee = ?",
		&sqlitex.ExecOptions{Args: []any{follower, followee}})
	if err != nil {
		return fmt.Errorf("store: delete relationship: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendOutbox(ctx context.Context, entry OutboxEntry) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: append outbox: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT INTO outbox (activity_id, actor_uri, payload, created_at) VALUES (?, ?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{entry.ActivityID, entry.ActorURI, entry.Payload, entry.CreatedAt.UnixMilli()},
		})
	if err != nil {
		return fmt.Errorf("store: append outbox: %w", err)
	}
	return nil
}

func (s *SQLiteStore) OutboxPage(ctx context.Context, actorURI string, page, pageSize int) ([]OutboxEntry, int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("store: outbox page: %w", err)
	}
	defer s.pool.Put(conn)

	var total int
	err = sqlitex.Execute(conn,
		"SELECT COUNT(*) FROM outbox WHERE actor_uri = ?",
		&sqlitex.ExecOptions{
			Args: []any{actorURI},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				total = stmt.ColumnInt(0)
				return nil
			},
		})
	if err != nil {
		return nil, 0, fmt.Errorf("store: outbox page: %w", err)
	}

	var entries []OutboxEntry
	err = sqlitex.Execute(conn,
		`SELECT activity_id, actor_uri, payload, created_at FROM outbox
		 WHERE actor_uri = ? ORDER BY seq DESC LIMIT ? OFFSET ?`,
		&sqlitex.ExecOptions{
			Args: []any{actorURI, pageSize, (page - 1) * pageSize},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				payload := make([]byte, stmt.ColumnLen(2))
				stmt.ColumnBytes(2, payload)
				entries = append(entries, OutboxEntry{
					ActivityID: stmt.ColumnText(0),
					ActorURI:   stmt.ColumnText(1),
					Payload:    payload,
					CreatedAt:  time.UnixMilli(stmt.ColumnInt64(3)),
				})
				return nil
			},
		})
	if err != nil {
		return nil, 0, fmt.Errorf("store: outbox page: %w", err)
	}
	return entries, total, nil
}

func (s *SQLiteStore) AddDeadLetter(ctx context.Context, dl DeadLetter) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: add dead letter: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT OR REPLACE INTO dead_letters
		 (task_id, inbox_url, activity_id, payload, attempts, reason, failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{dl.TaskID, dl.InboxURL, dl.ActivityID, dl.Payload, dl.Attempts, dl.Reason, dl.FailedAt.UnixMilli()},
		})
	if err != nil {
		return fmt.Errorf("store: add dead letter: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list dead letters: %w", err)
	}
	defer s.pool.Put(conn)

	if limit <= 0 {
		limit = 100
	}

	var out []DeadLetter
	err = sqlitex.Execute(conn,
		`SELECT task_id, inbox_url, activity_id, payload, attempts, reason, failed_at
		 FROM dead_letters ORDER BY failed_at DESC LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				payload := make([]byte, stmt.ColumnLen(3))
				stmt.ColumnBytes(3, payload)
				out = append(out, DeadLetter{
					TaskID:     stmt.ColumnText(0),
					InboxURL:   stmt.ColumnText(1),
					ActivityID: stmt.ColumnText(2),
					Payload:    payload,
					Attempts:   stmt.ColumnInt(4),
					Reason:     stmt.ColumnText(5),
					FailedAt:   time.UnixMilli(stmt.ColumnInt64(6)),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: list dead letters: %w", err)
	}
	return out, nil
}
