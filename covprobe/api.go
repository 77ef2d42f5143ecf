package covprobe

import (
	"io"

	"github.com/kolkov/covprobe/internal/cover/location"
	"github.com/kolkov/covprobe/internal/cover/patch"
	"github.com/kolkov/covprobe/internal/cover/probe"
	"github.com/kolkov/covprobe/internal/cover/report"
	"github.com/kolkov/covprobe/internal/cover/session"
)

// Core types.
type (
	// Session tracks coverage for a set of instrumented units.
	Session = session.Session

	// Config configures a Session.
	Config = session.Config

	// Unit is one compiled unit registered with a Session.
	Unit = session.Unit

	// Point is a line number or an encoded branch edge.
	Point = location.Point

	// Stats is a snapshot of one probe's counters.
	Stats = probe.Stats

	// Handle addresses a probe inside a session's engine.
	Handle = probe.Handle

	// Buffer is instruction memory call sites can be patched in.
	Buffer = patch.Buffer

	// Bytes is a Buffer over a plain byte slice.
	Bytes = patch.Bytes
)

// Report types.
type (
	Coverage    = report.Coverage
	File        = report.File
	Summary     = report.Summary
	Branch      = report.Branch
	TextOptions = report.TextOptions
)

// Threshold sentinels for Config.Threshold.
const (
	ThresholdLocalOnly = probe.ThresholdLocalOnly
	ThresholdNever     = probe.ThresholdNever
	DefaultThreshold   = session.DefaultThreshold
)

// Errors callers may test with errors.Is.
var (
	ErrBadThreshold         = probe.ErrBadThreshold
	ErrEmptyFile            = probe.ErrEmptyFile
	ErrDuplicateLocation    = probe.ErrDuplicateLocation
	ErrStaleHandle          = probe.ErrStaleHandle
	ErrImmediateUnsupported = probe.ErrImmediateUnsupported
	ErrInvalidBuffer        = patch.ErrInvalidBuffer
)

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return session.DefaultConfig()
}

// NewSession creates a Session. Coverage documents it produces carry this
// package's Version unless cfg.Version is set.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Version == "" {
		cfg.Version = Version
	}
	return session.New(cfg)
}

// Line returns the Point for a source line.
func Line(n int) Point {
	return location.Line(n)
}

// BranchPoint encodes the edge from -> to; to is 0 for a function exit.
func BranchPoint(from, to int) (Point, error) {
	return location.Branch(from, to)
}

// WriteText prints c as a table for human consumption.
func WriteText(w io.Writer, c *Coverage, opts TextOptions) error {
	return report.WriteText(w, c, opts)
}

// WriteJSON encodes c.
func WriteJSON(w io.Writer, c *Coverage) error {
	return report.WriteJSON(w, c)
}

// Merge folds b into a.
func Merge(a, b *Coverage) error {
	return report.Merge(a, b)
}

// WriteStats prints a summary of the session's probe statistics followed
// by the top probes by total entries. top <= 0 lists all of them.
func WriteStats(w io.Writer, s *Session, top int) error {
	return report.WriteStats(w, s.Stats(), top)
}

// WritePprof writes the session's probe statistics as a gzipped pprof
// profile, one sample per probe with d_misses, u_misses, hits and total.
func WritePprof(w io.Writer, s *Session) error {
	return report.WritePprof(w, s.Stats())
}
