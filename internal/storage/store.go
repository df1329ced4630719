// Package storage persists the model database and serves filtered, sorted reads.
package storage

import (
	"context"
	"fmt"

	"github.com/everstacklabs/modelprice/internal/model"
)

// Store persists the model database. Writes are serialized within a process
// and replace state atomically; readers only ever see complete snapshots.
type Store interface {
	// Load returns the persisted database. A missing or corrupt store yields
	// an empty database stamped with the current time; only unrecoverable
	// errors are returned.
	Load(ctx context.Context) (*model.Database, error)
	// ReplaceAll replaces every record and stamps the refresh time.
	ReplaceAll(ctx context.Context, models []model.Record) error
	// UpsertSource removes every record of source, appends models, and
	// stamps the refresh time. Records of other sources are untouched.
	UpsertSource(ctx context.Context, source string, models []model.Record) error
	// ModifySource reads the current records of source and replaces them
	// with fn's result as UpsertSource would, all under the write lock, so
	// no concurrent write lands between the read and the replace.
	ModifySource(ctx context.Context, source string, fn func(current []model.Record) ([]model.Record, error)) error
	// Get returns one record by id, or ErrNotFound.
	Get(ctx context.Context, id string) (model.Record, error)
	// UpdateRecord applies fn to one record under the write lock and persists it.
	UpdateRecord(ctx context.Context, id string, fn func(*model.Record) error) error
	// Query filters and sorts the persisted records.
	Query(ctx context.Context, f Filter, s Sort) ([]model.Record, error)
	Close() error
}

// Drivers accepted by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Open creates a store for the given driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", DriverJSON:
		return NewJSONStore(path), nil
	case DriverSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// dedupe keeps the last occurrence of each id, in the order those last
// occurrences appear.
func dedupe(records []model.Record) []model.Record {
	last := make(map[string]int, len(records))
	for i, r := range records {
		last[r.ID] = i
	}
	if len(last) == len(records) {
		return records
	}
	out := make([]model.Record, 0, len(last))
	for i, r := range records {
		if last[r.ID] == i {
			out = append(out, r)
		}
	}
	return out
}

// withoutSource returns the records not belonging to source, in order.
func withoutSource(records []model.Record, source string) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if r.Source != source {
			out = append(out, r)
		}
	}
	return out
}
