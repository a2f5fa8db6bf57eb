//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// One connection keeps BEGIN/COMMIT on the same handle as the writes.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM kv WHERE key = ?`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	return s.Commit(ctx, NewBatch().Set(key, value))
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	return s.Commit(ctx, NewBatch().Delete(key))
}

func (s *SQLiteStore) Has(ctx context.Context, key string) (bool, error) {
	db, err := s.getDB()
	if err != nil {
		return false, err
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM kv WHERE key = ?`, key).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) List(ctx context.Context, key string) ([][]byte, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT payload FROM kv_lists WHERE key = ? ORDER BY seq`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := [][]byte{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		out = append(out, payload)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PushToList(ctx context.Context, key string, value []byte) error {
	return s.Commit(ctx, NewBatch().Push(key, value))
}

func (s *SQLiteStore) All(ctx context.Context) (map[string][]byte, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT key, payload FROM kv`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var (
			key     string
			payload []byte
		)
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, err
		}
		out[key] = payload
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Commit(ctx context.Context, batch *Batch) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, op := range batch.Ops() {
		if err := applySQL(ctx, tx, op); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("commit %s: %w", op.Key, err)
		}
	}
	return tx.Commit()
}

func applySQL(ctx context.Context, tx *sql.Tx, op Op) error {
	var err error
	switch op.Kind {
	case OpSet:
		value := op.Value
		if value == nil {
			value = []byte{}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO kv (key, payload)
			VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET
				payload = excluded.payload
		`, op.Key, value)
	case OpDelete:
		if _, err = tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, op.Key); err == nil {
			_, err = tx.ExecContext(ctx, `DELETE FROM kv_lists WHERE key = ?`, op.Key)
		}
	case OpPush:
		value := op.Value
		if value == nil {
			value = []byte{}
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO kv_lists (key, payload) VALUES (?, ?)`, op.Key, value)
	default:
		err = fmt.Errorf("unknown op kind %d", op.Kind)
	}
	return err
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS kv_lists (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS kv_lists_key ON kv_lists (key, seq);
	`)
	return err
}
