package durable

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig    = errors.New("durable: invalid configuration")
	ErrInvalidStoreType = errors.New("durable: invalid store type")
	// ErrRead matches every ReadError.
	ErrRead = errors.New("durable: read failed")
	// ErrWrite matches every WriteError.
	ErrWrite = errors.New("durable: write failed")
)

// ReadError reports a failed read of Key.
type ReadError struct {
	Key string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("durable: read %q: %v", e.Key, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Is reports ErrRead as a match.
func (e *ReadError) Is(target error) bool { return target == ErrRead }

// WriteError reports a failed write of Key.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("durable: write %q: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Is reports ErrWrite as a match.
func (e *WriteError) Is(target error) bool { return target == ErrWrite }
