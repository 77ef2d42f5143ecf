// Copyright 2026 The covprobe Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package session is the coverage session probes report to.
//
// A Session owns a probe engine, the newly-seen and all-seen point tables
// and the set of instrumented units. Hosts register each compiled unit with
// Instrument and drive its call sites through Unit.Reach. When a probe
// reaches its miss threshold the session runs a batched pass: every wired
// call site whose point was seen since the last pass is deinstrumented and
// its recording call removed from the unit.
//
// All calls are expected on the executor goroutine that drives the probes,
// or while it is stopped. The mutex serializes bookkeeping passes; it does
// not make the engine safe for concurrent use.
package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/kolkov/covprobe/internal/cover/location"
	"github.com/kolkov/covprobe/internal/cover/patch"
	"github.com/kolkov/covprobe/internal/cover/probe"
	"github.com/kolkov/covprobe/internal/cover/report"
	"github.com/kolkov/covprobe/internal/cover/sink"
)

// DefaultThreshold is the D miss threshold of DefaultConfig.
const DefaultThreshold = 50

var (
	// ErrOffsets is returned when a unit's offsets do not match its points.
	ErrOffsets = errors.New("offsets do not match points")

	// ErrDiscarded is returned when a discarded unit is used.
	ErrDiscarded = errors.New("unit discarded")

	// ErrSiteRange is returned for a call site index outside the unit.
	ErrSiteRange = errors.New("call site out of range")
)

// Config configures a Session.
type Config struct {
	// CollectStats keeps deinstrumentation statistics: probes record every
	// signal, and removed call sites keep counting hits on a negated bucket.
	CollectStats bool

	// Threshold is the D miss threshold handed to new probes
	// (probe.ThresholdLocalOnly and probe.ThresholdNever are accepted).
	// DefaultConfig sets DefaultThreshold; the zero value means
	// "deinstrument on the first D miss".
	Threshold int

	// Branch enables branch points. Without it, branch points passed to
	// Instrument are ignored.
	Branch bool

	// Immediate patches each call site on its first signal instead of
	// batching. Falls back to batching when the patcher is unsupported.
	Immediate bool

	// SinkKind selects the sink variant.
	// Default: sink.KindCounter with CollectStats, sink.KindSet without.
	SinkKind sink.Kind

	// Patcher writes instruction bytes for immediate mode.
	// Default: patch.Default().
	Patcher patch.CodePatcher

	// Strict rejects probe entries from goroutines other than the one
	// calling New.
	Strict bool

	// Simplifier renames files in Coverage output.
	// Default: none, files keep the names they were instrumented under.
	Simplifier report.Simplifier

	// Version is written to the coverage metadata.
	// Default: "devel".
	Version string

	// Logger receives debug output about units and passes.
	// Default: zerolog.Nop().
	Logger *zerolog.Logger
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold}
}

// Session tracks coverage for a set of instrumented units.
type Session struct {
	mu sync.Mutex

	cfg    Config
	log    zerolog.Logger
	engine *probe.Engine
	now    func() time.Time

	// newlySeen is read on the probe hot path and swapped by passes.
	newlySeen atomic.Pointer[sink.Table]

	allSeen      map[string]map[location.Point]bool
	codeLines    map[string]map[int]bool
	codeBranches map[string]map[report.Branch]bool
	units        map[string][]*Unit

	passes int
}

// New creates a Session.
func New(cfg Config) (*Session, error) {
	if cfg.Threshold < probe.ThresholdNever {
		return nil, fmt.Errorf("threshold %d: %w", cfg.Threshold, probe.ErrBadThreshold)
	}
	if cfg.SinkKind == sink.KindInvalid {
		cfg.SinkKind = sink.KindSet
		if cfg.CollectStats {
			cfg.SinkKind = sink.KindCounter
		}
	}
	if cfg.Patcher == nil {
		cfg.Patcher = patch.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "devel"
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "session").Logger()
	}

	s := &Session{
		cfg:          cfg,
		log:          log,
		engine:       probe.NewEngine(probe.Options{Patcher: cfg.Patcher, Strict: cfg.Strict}),
		now:          time.Now,
		allSeen:      make(map[string]map[location.Point]bool),
		codeLines:    make(map[string]map[int]bool),
		codeBranches: make(map[string]map[report.Branch]bool),
		units:        make(map[string][]*Unit),
	}
	s.newlySeen.Store(sink.NewTable(cfg.SinkKind))

	if cfg.Immediate && !s.engine.ImmediateSupported() {
		s.log.Warn().Msg("immediate deinstrumentation unsupported on this runtime, batching instead")
	}
	return s, nil
}

// CollectStats implements probe.Session.
func (s *Session) CollectStats() bool {
	return s.cfg.CollectStats
}

// Threshold implements probe.Session.
func (s *Session) Threshold() int {
	return s.cfg.Threshold
}

// NewlySeen implements probe.Session.
func (s *Session) NewlySeen(file string) (*sink.Sink, error) {
	return s.newlySeen.Load().Lookup(file)
}

// Engine returns the session's probe engine.
func (s *Session) Engine() *probe.Engine {
	return s.engine
}

// Passes returns the number of batched deinstrumentation passes run so far.
func (s *Session) Passes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passes
}

// swapNewlySeen installs an empty table with the same files opened and
// returns the previous one.
func (s *Session) swapNewlySeen() *sink.Table {
	old := s.newlySeen.Load()
	s.newlySeen.Store(old.Fresh())
	return old
}

// DeinstrumentSeen implements probe.Session. It deinstruments every wired
// call site whose point was seen since the previous pass, removes those
// call sites from their units, and folds the points into the all-seen set.
func (s *Session) DeinstrumentSeen() {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := s.swapNewlySeen()
	s.passes++

	var points, removed, buckets int
	for _, file := range seen.Files() {
		snk, _ := seen.Lookup(file)
		pts := snk.Points()
		points += len(pts)

		for _, u := range s.units[file] {
			r, b := u.deinstrument(snk)
			removed += r
			buckets += b
		}
		s.foldSeen(file, pts)
	}

	s.log.Debug().
		Int("pass", s.passes).
		Int("files", len(seen.Files())).
		Int("points", points).
		Int("removed", removed).
		Int("buckets", buckets).
		Msg("deinstrumented seen call sites")
}

func (s *Session) foldSeen(file string, pts []location.Point) {
	if len(pts) == 0 {
		return
	}
	all := s.allSeen[file]
	if all == nil {
		all = make(map[location.Point]bool, len(pts))
		s.allSeen[file] = all
	}
	for _, p := range pts {
		all[p] = true
	}
}

// Instrument registers a compiled unit of file with one call site per
// point. The file's points become code lines (or code branches) for
// coverage reports whether or not they ever execute.
//
// In immediate mode buf holds the unit's instruction bytes and offsets[i]
// is the position of call site i inside it; buf may be nil otherwise.
func (s *Session) Instrument(file string, points []location.Point, buf patch.Buffer, offsets []int) (*Unit, error) {
	if file == "" {
		return nil, fmt.Errorf("instrument: %w", probe.ErrEmptyFile)
	}
	immediate := s.cfg.Immediate && s.engine.ImmediateSupported() && buf != nil
	if immediate && len(offsets) != len(points) {
		return nil, fmt.Errorf("instrument %s: %d points, %d offsets: %w",
			file, len(points), len(offsets), ErrOffsets)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := &Unit{session: s, file: file, buf: buf, byPoint: make(map[location.Point]int)}
	for i, p := range points {
		if p.IsBranch() && !s.cfg.Branch {
			continue
		}
		h, err := s.engine.Create(s, location.New(file, p))
		if err != nil {
			u.release()
			return nil, fmt.Errorf("instrument %s: %w", file, err)
		}

		st := site{point: p, handle: h}
		if immediate {
			if err := s.engine.SetImmediate(h, buf, offsets[i]); err != nil {
				_ = s.engine.Release(h)
				u.release()
				return nil, fmt.Errorf("instrument %s: %w", file, err)
			}
			st.offset = offsets[i]
			st.armed = true
		}
		u.byPoint[p] = len(u.sites)
		u.sites = append(u.sites, st)
	}

	s.addCode(file, u.sites)
	s.newlySeen.Load().Open(file)
	s.units[file] = append(s.units[file], u)

	s.log.Debug().
		Str("file", file).
		Int("sites", len(u.sites)).
		Bool("immediate", immediate).
		Msg("instrumented unit")
	return u, nil
}

func (s *Session) addCode(file string, sites []site) {
	lines := s.codeLines[file]
	if lines == nil {
		lines = make(map[int]bool)
		s.codeLines[file] = lines
	}
	for _, st := range sites {
		if from, to, ok := st.point.Edge(); ok {
			brs := s.codeBranches[file]
			if brs == nil {
				brs = make(map[report.Branch]bool)
				s.codeBranches[file] = brs
			}
			brs[report.Branch{from, to}] = true
			continue
		}
		lines[st.point.LineNumber()] = true
	}
}

// Discard releases the unit's probes, as when a compiled unit is thrown
// away. Statistics buckets outlive the unit. The file's code lines and seen
// points are kept.
func (s *Session) Discard(u *Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.discarded {
		return
	}
	u.release()

	list := s.units[u.file]
	for i, v := range list {
		if v == u {
			s.units[u.file] = append(list[:i], list[i+1:]...)
			break
		}
	}
	s.log.Debug().Str("file", u.file).Msg("discarded unit")
}

// Stats returns snapshots of every live probe, buckets included.
func (s *Session) Stats() []probe.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.All()
}

// Reset forgets everything seen so far. Probes keep their state; call sites
// already removed stay removed. Used when a forked child starts its own
// accounting.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.swapNewlySeen()
	s.allSeen = make(map[string]map[location.Point]bool)
	s.log.Debug().Msg("reset seen points")
}

// Coverage returns the coverage collected so far: points seen since the
// last pass count as executed without disturbing the next pass.
func (s *Session) Coverage() *report.Coverage {
	s.mu.Lock()
	defer s.mu.Unlock()

	newly := s.newlySeen.Load()
	c := &report.Coverage{
		Meta: report.Meta{
			Software:       report.Software,
			Version:        s.cfg.Version,
			Timestamp:      s.now().Format("2006-01-02T15:04:05.000000"),
			BranchCoverage: s.cfg.Branch,
		},
		Files: make(map[string]*report.File, len(s.codeLines)),
	}

	for file, code := range s.codeLines {
		executed := make(map[int]bool)
		taken := make(map[report.Branch]bool)
		mark := func(p location.Point) {
			if p.IsNegated() {
				return
			}
			if from, to, ok := p.Edge(); ok {
				taken[report.Branch{from, to}] = true
				return
			}
			executed[p.LineNumber()] = true
		}
		for p := range s.allSeen[file] {
			mark(p)
		}
		if snk, err := newly.Lookup(file); err == nil {
			for _, p := range snk.Points() {
				mark(p)
			}
		}

		f := &report.File{
			ExecutedLines: sortedLines(executed),
			MissingLines:  sortedLines(subtractLines(code, executed)),
		}
		if s.cfg.Branch {
			f.ExecutedBranches = sortedBranches(taken)
			f.MissingBranches = sortedBranches(subtractBranches(s.codeBranches[file], taken))
		}

		c.Files[file] = f
	}

	if s.cfg.Simplifier != nil {
		return report.Rename(c, s.cfg.Simplifier)
	}
	report.AddSummaries(c)
	return c
}
