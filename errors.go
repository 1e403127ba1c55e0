package records

import (
	"errors"
	"fmt"

	"github.com/creastat/records/durable"
	"github.com/creastat/records/lock"
)

// Common errors for record store operations.
var (
	ErrUnsupportedKeyType = errors.New("records: unsupported key type")
	ErrStoreClosed        = errors.New("records: store closed")
	ErrNotOpen            = errors.New("records: record not open")
	ErrInvalidConfig      = errors.New("records: invalid configuration")

	// ErrLockConflict is returned when another session owns the record's lock.
	ErrLockConflict = lock.ErrConflict
	ErrRead         = durable.ErrRead
	ErrWrite        = durable.ErrWrite
)

// UnsupportedKeyError reports a key whose type cannot be normalized.
type UnsupportedKeyError struct {
	Key any
}

func (e *UnsupportedKeyError) Error() string {
	return fmt.Sprintf("records: unsupported key %v (%T)", e.Key, e.Key)
}

// Is reports ErrUnsupportedKeyType as a match.
func (e *UnsupportedKeyError) Is(target error) bool { return target == ErrUnsupportedKeyType }

// LoadError wraps the failure of the initial read behind Store.Open.
type LoadError struct {
	Key string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("records: load %q: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
