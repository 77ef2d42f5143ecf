package probe

import (
	"errors"
	"fmt"

	"github.com/kolkov/covprobe/internal/cover/location"
	"github.com/kolkov/covprobe/internal/cover/patch"
)

// Configuration errors, reported by Create.
var (
	// ErrNoSession is returned when a probe is created without a session.
	ErrNoSession = errors.New("no session")

	// ErrEmptyFile is returned when a location has no file identifier.
	ErrEmptyFile = errors.New("empty file identifier")

	// ErrBadThreshold is returned for thresholds below ThresholdNever.
	ErrBadThreshold = errors.New("invalid miss threshold")

	// ErrDuplicateLocation is returned when a live probe already watches the
	// location. Release the old probe first.
	ErrDuplicateLocation = errors.New("location already has a probe")
)

var (
	// ErrStaleHandle is returned for handles that were released or never
	// issued by the engine.
	ErrStaleHandle = errors.New("stale probe handle")

	// ErrImmediateUnsupported is returned by SetImmediate when the engine's
	// patcher cannot write instruction bytes on this runtime.
	ErrImmediateUnsupported = patch.ErrUnsupported
)

// Error describes a failed probe operation.
//
// Format: file:point: op: cause
//
// Example:
//
//	a.py:10: signal: a.py: missing sink entry
type Error struct {
	Op  string            // Operation that failed
	Loc location.Location // Location of the probe
	Err error             // Underlying cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Loc, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op string, loc location.Location, err error) error {
	return &Error{Op: op, Loc: loc, Err: err}
}

func staleError(op string, h Handle) error {
	return fmt.Errorf("%s: handle %#x: %w", op, uint64(h), ErrStaleHandle)
}
