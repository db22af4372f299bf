package idempotency

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records in SQLite. Revisions are a per-row counter.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storeError("could not open idempotency database", err)
	}
	// One connection: :memory: databases are per connection, and writes
	// serialize anyway.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, storeError("failed to initialize idempotency schema", err)
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS idempotency_records (
		key TEXT PRIMARY KEY,
		revision INTEGER NOT NULL,
		status TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		payload BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_updated ON idempotency_records(status, updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Record, bool, error) {
	var (
		rev     uint64
		payload []byte
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT revision, payload FROM idempotency_records WHERE key = ?", key,
	).Scan(&rev, &payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, storeError("failed to query record", err)
	}
	r, err := decode(payload, rev)
	return r, err == nil, err
}

func (s *SQLiteStore) CompareAndSwap(ctx context.Context, key string, expected uint64, next Record) (Record, error) {
	next.Key = key
	payload, err := encode(next)
	if err != nil {
		return Record{}, err
	}

	var res sql.Result
	if expected == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO idempotency_records (key, revision, status, updated_at, payload)
			 VALUES (?, 1, ?, ?, ?) ON CONFLICT(key) DO NOTHING`,
			key, string(next.Status), next.UpdatedAt.UnixNano(), payload)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE idempotency_records SET revision = revision + 1, status = ?, updated_at = ?, payload = ?
			 WHERE key = ? AND revision = ?`,
			string(next.Status), next.UpdatedAt.UnixNano(), payload, key, expected)
	}
	if err != nil {
		return Record{}, storeError("failed to write record", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return Record{}, ErrConflict
	}
	next.Revision = expected + 1
	return next, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string, expected uint64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM idempotency_records WHERE key = ? AND revision = ?", key, expected)
	if err != nil {
		return storeError("failed to delete record", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ErrConflict
	}
	return nil
}

func (s *SQLiteStore) Prune(ctx context.Context, resolvedBefore, pendingBefore time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM idempotency_records
		 WHERE (status != ? AND updated_at < ?) OR (status = ? AND updated_at < ?)`,
		string(StatusPending), resolvedBefore.UnixNano(),
		string(StatusPending), pendingBefore.UnixNano())
	if err != nil {
		return 0, storeError("failed to prune records", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
