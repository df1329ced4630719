package storage

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrNotFound is returned when a record id is not in the database.
var ErrNotFound = errors.New("model not found")

// ErrNoChange may be returned by a ModifySource callback to leave the
// database untouched. ModifySource then returns nil.
var ErrNoChange = errors.New("no change")

// CorruptionError reports a persisted database that cannot be decoded.
// Load recovers from it by treating the database as empty.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("database %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// IsRecoverable reports whether a read error is handled by starting from an
// empty database: the store does not exist yet, or it is corrupt.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var corrupt *CorruptionError
	return errors.As(err, &corrupt) || errors.Is(err, fs.ErrNotExist)
}
