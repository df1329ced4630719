package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/everstacklabs/modelprice/internal/fsutil"
	"github.com/everstacklabs/modelprice/internal/model"
)

// JSONStore keeps the database as one JSON document on disk.
// Writes go through a temp file and rename, so readers in other processes
// see either the old or the new document.
type JSONStore struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewJSONStore returns a store backed by the document at path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path, now: time.Now}
}

// Path returns the database document path.
func (s *JSONStore) Path() string { return s.path }

// ReadDatabase decodes the document at path. A missing file surfaces as
// fs.ErrNotExist; undecodable content as *CorruptionError.
func ReadDatabase(path string) (*model.Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var db model.Database
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, &CorruptionError{Path: path, Err: err}
	}
	if db.Models == nil {
		db.Models = []model.Record{}
	}
	if db.Version == "" {
		db.Version = model.DatabaseVersion
	}
	return &db, nil
}

// Load returns the persisted database, or an empty one when the document is
// missing or corrupt.
func (s *JSONStore) Load(ctx context.Context) (*model.Database, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.load()
}

func (s *JSONStore) load() (*model.Database, error) {
	db, err := ReadDatabase(s.path)
	if err == nil {
		return db, nil
	}
	if !IsRecoverable(err) {
		return nil, fmt.Errorf("reading database: %w", err)
	}
	if !os.IsNotExist(err) {
		slog.Error("database unreadable, starting empty", "path", s.path, "error", err)
	}
	return model.NewDatabase(s.now()), nil
}

func (s *JSONStore) ReplaceAll(ctx context.Context, models []model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	db := model.NewDatabase(s.now())
	db.Models = append(db.Models, dedupe(models)...)
	return s.save(db)
}

func (s *JSONStore) UpsertSource(ctx context.Context, source string, models []model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.load()
	if err != nil {
		return err
	}
	db.Models = dedupe(append(withoutSource(db.Models, source), models...))
	db.LastRefresh = s.now()
	return s.save(db)
}

func (s *JSONStore) ModifySource(ctx context.Context, source string, fn func([]model.Record) ([]model.Record, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.load()
	if err != nil {
		return err
	}
	var current []model.Record
	for _, r := range db.Models {
		if r.Source == source {
			current = append(current, r)
		}
	}

	next, err := fn(current)
	if errors.Is(err, ErrNoChange) {
		return nil
	}
	if err != nil {
		return err
	}
	db.Models = dedupe(append(withoutSource(db.Models, source), next...))
	db.LastRefresh = s.now()
	return s.save(db)
}

func (s *JSONStore) Get(ctx context.Context, id string) (model.Record, error) {
	db, err := s.Load(ctx)
	if err != nil {
		return model.Record{}, err
	}
	for _, r := range db.Models {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Record{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// UpdateRecord rewrites one record in place. lastRefresh is left alone;
// editing a record is not a refresh.
func (s *JSONStore) UpdateRecord(ctx context.Context, id string, fn func(*model.Record) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.load()
	if err != nil {
		return err
	}
	for i := range db.Models {
		if db.Models[i].ID != id {
			continue
		}
		if err := fn(&db.Models[i]); err != nil {
			return err
		}
		db.Models[i].ID = id
		return s.save(db)
	}
	return fmt.Errorf("%s: %w", id, ErrNotFound)
}

func (s *JSONStore) Query(ctx context.Context, f Filter, srt Sort) ([]model.Record, error) {
	db, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Apply(db.Models, f, srt), nil
}

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) save(db *model.Database) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding database: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing database: %w", err)
	}
	slog.Debug("database saved", "path", s.path, "models", len(db.Models))
	return nil
}
