package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/everstacklabs/modelprice/internal/model"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS models (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		position INTEGER NOT NULL,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS models_provider ON models(provider);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`

const metaLastRefresh = "last_refresh"

// SQLiteStore keeps one row per record. Each write runs in a single
// transaction, so a per-source replace is never observed half applied.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time

	mu sync.Mutex
}

// OpenSQLite opens or creates the database at path. A file that is not a
// valid SQLite database is moved aside and replaced by an empty one.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := openSQLite(path)
	if err != nil && isSQLiteCorrupt(err) {
		aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		slog.Error("database unreadable, starting empty", "path", path, "moved_to", aside, "error", err)
		if rerr := os.Rename(path, aside); rerr != nil {
			return nil, &CorruptionError{Path: path, Err: err}
		}
		db, err = openSQLite(path)
	}
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

func isSQLiteCorrupt(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrNotADB || se.Code == sqlite3.ErrCorrupt
}

// wrap turns SQLite corruption codes into *CorruptionError.
func (s *SQLiteStore) wrap(op string, err error) error {
	if isSQLiteCorrupt(err) {
		return &CorruptionError{Path: s.path, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (*model.Database, error) {
	db, err := s.read(ctx, "")
	if err == nil {
		return db, nil
	}
	if !IsRecoverable(err) {
		return nil, err
	}
	slog.Error("database unreadable, starting empty", "path", s.path, "error", err)
	return model.NewDatabase(s.now()), nil
}

// read loads every record, or only those of source when it is set.
func (s *SQLiteStore) read(ctx context.Context, source string) (*model.Database, error) {
	db := model.NewDatabase(s.now())

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaLastRefresh).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, s.wrap("reading meta", err)
	default:
		if t, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
			db.LastRefresh = t
		}
	}

	query := `SELECT id, data FROM models ORDER BY position`
	args := []any{}
	if source != "" {
		query = `SELECT id, data FROM models WHERE provider = ? ORDER BY position`
		args = append(args, source)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("querying models", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, s.wrap("scanning model", err)
		}
		var r model.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, &CorruptionError{Path: s.path, Err: fmt.Errorf("row %s: %w", id, err)}
		}
		db.Models = append(db.Models, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("iterating models", err)
	}
	return db, nil
}

func (s *SQLiteStore) ReplaceAll(ctx context.Context, models []model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM models`); err != nil {
			return s.wrap("clearing models", err)
		}
		if err := insertRecords(ctx, tx, dedupe(models), 0); err != nil {
			return err
		}
		return s.stamp(ctx, tx)
	})
}

func (s *SQLiteStore) UpsertSource(ctx context.Context, source string, models []model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.replaceSource(ctx, tx, source, models)
	})
}

func (s *SQLiteStore) ModifySource(ctx context.Context, source string, fn func([]model.Record) ([]model.Record, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := s.sourceRecords(ctx, tx, source)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		return s.replaceSource(ctx, tx, source, next)
	})
	if errors.Is(err, ErrNoChange) {
		return nil
	}
	return err
}

func (s *SQLiteStore) replaceSource(ctx context.Context, tx *sql.Tx, source string, models []model.Record) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM models WHERE provider = ?`, source); err != nil {
		return s.wrap("deleting source models", err)
	}
	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM models`).Scan(&next); err != nil {
		return s.wrap("reading position", err)
	}
	if err := insertRecords(ctx, tx, dedupe(models), next); err != nil {
		return err
	}
	return s.stamp(ctx, tx)
}

func (s *SQLiteStore) sourceRecords(ctx context.Context, tx *sql.Tx, source string) ([]model.Record, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, data FROM models WHERE provider = ? ORDER BY position`, source)
	if err != nil {
		return nil, s.wrap("querying models", err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, s.wrap("scanning model", err)
		}
		var r model.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, &CorruptionError{Path: s.path, Err: fmt.Errorf("row %s: %w", id, err)}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("iterating models", err)
	}
	return out, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM models WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Record{}, s.wrap("reading model", err)
	}
	var r model.Record
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return model.Record{}, &CorruptionError{Path: s.path, Err: fmt.Errorf("row %s: %w", id, err)}
	}
	return r, nil
}

func (s *SQLiteStore) UpdateRecord(ctx context.Context, id string, fn func(*model.Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var data string
		err := tx.QueryRowContext(ctx, `SELECT data FROM models WHERE id = ?`, id).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		if err != nil {
			return s.wrap("reading model", err)
		}
		var r model.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return &CorruptionError{Path: s.path, Err: fmt.Errorf("row %s: %w", id, err)}
		}
		if err := fn(&r); err != nil {
			return err
		}
		r.ID = id
		encoded, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding model %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE models SET data = ? WHERE id = ?`, string(encoded), id); err != nil {
			return s.wrap("updating model", err)
		}
		return nil
	})
}

// Query pushes the source filter into SQL and applies the rest in memory.
func (s *SQLiteStore) Query(ctx context.Context, f Filter, srt Sort) ([]model.Record, error) {
	db, err := s.read(ctx, f.Source)
	if err != nil {
		if !IsRecoverable(err) {
			return nil, err
		}
		slog.Error("database unreadable, starting empty", "path", s.path, "error", err)
		return []model.Record{}, nil
	}
	return Apply(db.Models, f, srt), nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.wrap("commit", err)
	}
	return nil
}

func (s *SQLiteStore) stamp(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaLastRefresh, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return s.wrap("stamping refresh time", err)
	}
	return nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, models []model.Record, start int64) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO models (id, provider, position, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			position = excluded.position,
			data = excluded.data`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range models {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding model %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Source, start+int64(i), string(data)); err != nil {
			return fmt.Errorf("inserting model %s: %w", r.ID, err)
		}
	}
	return nil
}
