package lock

import (
	"errors"
	"fmt"
)

// ErrConflict matches every ConflictError.
var ErrConflict = errors.New("lock: held by another session")

// ConflictError reports that Key is owned by Holder.
type ConflictError struct {
	Key    string
	Holder Token
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("lock: %q held by session %s since %s", e.Key, e.Holder.SessionID, e.Holder.AcquiredAt.Format("2006-01-02T15:04:05Z07:00"))
}

// Is reports ErrConflict as a match.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
