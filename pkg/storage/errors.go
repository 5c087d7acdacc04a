package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotMounted indicates the operation needs a mounted card.
	ErrNotMounted = errors.New("not mounted")
	// ErrMounted indicates the operation is refused while the card
	// is mounted.
	ErrMounted = errors.New("card is mounted")
)

// Fault wraps a driver error raised after a successful mount.
// A Fault is recoverable: the card stays mounted and the caller
// may retry.
type Fault struct {
	Op  string
	Err error
}

// Error implements error.
func (f *Fault) Error() string {
	return fmt.Sprintf("storage %s: %v", f.Op, f.Err)
}

// Unwrap exposes the driver error.
func (f *Fault) Unwrap() error {
	return f.Err
}
