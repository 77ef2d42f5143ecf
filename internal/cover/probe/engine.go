// Copyright 2026 The covprobe Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package probe

import (
	"fmt"

	"github.com/kolkov/covprobe/internal/cover/executor"
	"github.com/kolkov/covprobe/internal/cover/location"
	"github.com/kolkov/covprobe/internal/cover/patch"
)

// Handle addresses a Tracker inside an Engine.
//
// Layout: generation in the high 32 bits, slot index in the low 32 bits.
// Generations start at 1, so the zero Handle is never valid.
type Handle uint64

func makeHandle(idx, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(idx))
}

func (h Handle) index() uint32 {
	return uint32(h)
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

// Options configures an Engine.
type Options struct {
	// Patcher performs immediate deinstrumentation.
	// Default: patch.Default(), the patcher selected for this runtime.
	Patcher patch.CodePatcher

	// Strict binds the engine to the goroutine that creates it and rejects
	// Signal, Hit and Deinstrument calls from any other goroutine.
	// Default: false.
	Strict bool
}

// slot is one arena cell. A nil tracker marks a free slot.
type slot struct {
	gen uint32
	t   *Tracker
}

// Engine owns the trackers of a session.
//
// Trackers are stored in an arena indexed by Handle. Released slots go on a
// free list and are reused with a bumped generation, the same way goroutine
// thread ids are recycled by a fixed pool.
//
// Thread Safety: none. See the package documentation.
type Engine struct {
	slots []slot
	free  []uint32
	index map[location.Location]Handle

	patcher   patch.CodePatcher
	immediate bool

	strict bool
	exec   executor.Executor
}

// NewEngine creates an Engine.
//
// The patcher's capability is checked here, once: if it cannot write
// instruction bytes, immediate patching is disabled for the engine's whole
// lifetime and SetImmediate fails with ErrImmediateUnsupported.
func NewEngine(opts Options) *Engine {
	if opts.Patcher == nil {
		opts.Patcher = patch.Default()
	}

	e := &Engine{
		index:     make(map[location.Location]Handle),
		patcher:   opts.Patcher,
		immediate: opts.Patcher.Supported(),
		strict:    opts.Strict,
	}
	if e.strict {
		e.exec.Bind()
	}
	return e
}

// ImmediateSupported reports whether SetImmediate can succeed.
func (e *Engine) ImmediateSupported() bool {
	return e.immediate
}

// Create allocates a tracker for loc using the session's default threshold.
func (e *Engine) Create(s Session, loc location.Location) (Handle, error) {
	if s == nil {
		return 0, opError("create", loc, ErrNoSession)
	}
	return e.CreateWithThreshold(s, loc, s.Threshold())
}

// CreateWithThreshold allocates a tracker for loc with an explicit D miss
// threshold (see ThresholdLocalOnly and ThresholdNever).
//
// Errors:
//   - ErrNoSession: s is nil
//   - ErrEmptyFile: loc has no file
//   - ErrBadThreshold: threshold < ThresholdNever
//   - ErrDuplicateLocation: a live tracker already watches loc
func (e *Engine) CreateWithThreshold(s Session, loc location.Location, threshold int) (Handle, error) {
	switch {
	case s == nil:
		return 0, opError("create", loc, ErrNoSession)
	case loc.File == "":
		return 0, opError("create", loc, ErrEmptyFile)
	case threshold < ThresholdNever:
		return 0, opError("create", loc, fmt.Errorf("%d: %w", threshold, ErrBadThreshold))
	}
	if _, ok := e.index[loc]; ok {
		return 0, opError("create", loc, ErrDuplicateLocation)
	}

	t := newTracker(s, loc, threshold, s.CollectStats())
	t.patcher = e.patcher
	return e.insert(t), nil
}

// insert places t in a free slot (or a new one) and indexes it.
func (e *Engine) insert(t *Tracker) Handle {
	var idx uint32
	if n := len(e.free); n > 0 {
		idx = e.free[n-1]
		e.free = e.free[:n-1]
	} else {
		//nolint:gosec // G115: arena never approaches 2^32 slots
		idx = uint32(len(e.slots))
		e.slots = append(e.slots, slot{})
	}

	s := &e.slots[idx]
	s.gen++
	s.t = t

	h := makeHandle(idx, s.gen)
	e.index[t.loc] = h
	return h
}

// lookup resolves h to its tracker.
//
//go:nosplit
func (e *Engine) lookup(h Handle) *Tracker {
	idx := h.index()
	if int(idx) >= len(e.slots) {
		return nil
	}
	s := &e.slots[idx]
	if s.gen != h.generation() {
		return nil
	}
	return s.t
}

// Signal is entered every time control reaches the tracker's location while
// its recording call is wired into the instruction stream.
//
// Errors from the session's sink (sink.ErrMissing, sink.ErrShape) are
// returned wrapped in *Error; the tracker is left unchanged in that case.
func (e *Engine) Signal(h Handle) error {
	t := e.lookup(h)
	if t == nil {
		return staleError("signal", h)
	}
	if e.strict {
		if err := e.exec.Check(); err != nil {
			return opError("signal", t.loc, err)
		}
	}
	if err := t.signal(); err != nil {
		return opError("signal", t.loc, err)
	}
	return nil
}

// Hit is entered from the cheap call site that replaces a removed recording
// call. It only counts.
func (e *Engine) Hit(h Handle) error {
	t := e.lookup(h)
	if t == nil {
		return staleError("hit", h)
	}
	if e.strict {
		if err := e.exec.Check(); err != nil {
			return opError("hit", t.loc, err)
		}
	}
	t.hit()
	return nil
}

// Deinstrument marks the tracker deinstrumented. Repeated calls are no-ops.
//
// When the session collects statistics, the call that actually flips the
// tracker also returns a sibling: a tracker for the negated location,
// created deinstrumented, for the host to route post-removal accounting to.
// If a sibling for that location is already alive it is returned instead of
// creating a second one. ok is false when no sibling is returned.
func (e *Engine) Deinstrument(h Handle) (sibling Handle, ok bool, err error) {
	t := e.lookup(h)
	if t == nil {
		return 0, false, staleError("deinstrument", h)
	}
	if e.strict {
		if err := e.exec.Check(); err != nil {
			return 0, false, opError("deinstrument", t.loc, err)
		}
	}
	if !t.deinstrument() {
		return 0, false, nil
	}

	if existing, found := e.index[t.loc.Negate()]; found {
		return existing, true, nil
	}
	return e.insert(t.sibling()), true, nil
}

// SetImmediate binds the tracker to offset inside buf. The next Signal that
// finds the tracker instrumented patches the call site and deinstruments it.
//
// Errors:
//   - ErrImmediateUnsupported: the engine's patcher has no raw buffer access
//   - patch.ErrInvalidBuffer: buf is nil, sealed, or too short for offset
func (e *Engine) SetImmediate(h Handle, buf patch.Buffer, offset int) error {
	t := e.lookup(h)
	if t == nil {
		return staleError("set immediate", h)
	}
	if !e.immediate {
		return opError("set immediate", t.loc, ErrImmediateUnsupported)
	}

	site, err := e.patcher.Bind(buf, offset)
	if err != nil {
		return opError("set immediate", t.loc, err)
	}
	t.site = site
	t.armed = true
	return nil
}

// IsInstrumented reports whether the tracker still records.
func (e *Engine) IsInstrumented(h Handle) (bool, error) {
	t := e.lookup(h)
	if t == nil {
		return false, staleError("is instrumented", h)
	}
	return t.instrumented, nil
}

// Patched reports whether the tracker wrote the skip opcode over its call
// site. Bytes already in the buffer are never taken as a patch.
func (e *Engine) Patched(h Handle) (bool, error) {
	t := e.lookup(h)
	if t == nil {
		return false, staleError("patched", h)
	}
	return t.patched, nil
}

// Stats returns a snapshot of the tracker's counters.
func (e *Engine) Stats(h Handle) (Stats, error) {
	t := e.lookup(h)
	if t == nil {
		return Stats{}, staleError("stats", h)
	}
	return t.stats(), nil
}

// Location returns the location the tracker watches.
func (e *Engine) Location(h Handle) (location.Location, error) {
	t := e.lookup(h)
	if t == nil {
		return location.Location{}, staleError("location", h)
	}
	return t.loc, nil
}

// Find returns the handle of the live tracker watching loc.
func (e *Engine) Find(loc location.Location) (Handle, bool) {
	h, ok := e.index[loc]
	return h, ok
}

// Release destroys the tracker. The handle, and any copy of it, becomes
// stale; the location may receive a new tracker.
func (e *Engine) Release(h Handle) error {
	t := e.lookup(h)
	if t == nil {
		return staleError("release", h)
	}
	s := &e.slots[h.index()]
	s.t = nil
	delete(e.index, t.loc)
	e.free = append(e.free, h.index())
	return nil
}

// Len returns the number of live trackers.
func (e *Engine) Len() int {
	return len(e.index)
}
