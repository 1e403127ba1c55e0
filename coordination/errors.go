package coordination

import "errors"

var (
	ErrInvalidConfig    = errors.New("coordination: invalid configuration")
	ErrInvalidStoreType = errors.New("coordination: invalid store type")
	ErrInvalidTTL       = errors.New("coordination: ttl must be positive")
	// ErrContention is returned when an optimistic update kept losing races.
	ErrContention = errors.New("coordination: too much contention")
)
