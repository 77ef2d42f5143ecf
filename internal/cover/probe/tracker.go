package probe

import (
	"github.com/kolkov/covprobe/internal/cover/location"
	"github.com/kolkov/covprobe/internal/cover/patch"
	"github.com/kolkov/covprobe/internal/cover/sink"
)

// Threshold sentinels. Any threshold >= 0 is a D miss count.
const (
	// ThresholdLocalOnly never asks the session to deinstrument.
	ThresholdLocalOnly = -1

	// ThresholdNever never deinstruments the location.
	ThresholdNever = -2
)

// Session is the coverage session probes report to.
//
// CollectStats and Threshold are read once, when a probe is created.
// NewlySeen is consulted on every recording signal; sessions may swap the
// sinks they hand out between calls.
type Session interface {
	// CollectStats reports whether deinstrumentation statistics are kept.
	// When true, instrumented probes record every signal, not only the
	// first, and Deinstrument creates negated statistics buckets.
	CollectStats() bool

	// Threshold returns the default D miss threshold.
	Threshold() int

	// NewlySeen returns the sink for file.
	NewlySeen(file string) (*sink.Sink, error)

	// DeinstrumentSeen asks the session for a batched deinstrumentation
	// pass. Each probe calls it at most once.
	DeinstrumentSeen()
}

// Tracker is the state machine of one probe.
//
// Trackers are owned by an Engine and manipulated through handles; the zero
// value is not usable.
type Tracker struct {
	session Session
	loc     location.Location

	// collectStats is the session's setting at creation time.
	collectStats bool

	// signalled is set by the first recording signal and never cleared.
	signalled bool

	// instrumented is true until the probe is deinstrumented, either by
	// the session or by an immediate patch.
	instrumented bool

	// dMissCount starts at -1 so that the first signal leaves it at 0.
	// Frozen once instrumented becomes false.
	dMissCount int

	// uMissCount counts signals after logical deinstrumentation.
	uMissCount int

	// hitCount counts entries through the post-removal Hit path.
	hitCount int

	dMissThreshold int

	// patcher and site implement immediate deinstrumentation; armed is
	// set once SetImmediate succeeded.
	patcher patch.CodePatcher
	site    patch.Site
	armed   bool

	// patched is set once the skip opcode was written over the call site.
	patched bool
}

func newTracker(s Session, loc location.Location, threshold int, collectStats bool) *Tracker {
	return &Tracker{
		session:        s,
		loc:            loc,
		collectStats:   collectStats,
		instrumented:   true,
		dMissCount:     -1,
		dMissThreshold: threshold,
	}
}

// signal performs one Signal transition.
//
// The sink is written only while instrumented: on the first signal, and on
// every later one when statistics are collected. A failed sink write, or an
// armed call site whose buffer can no longer be written, aborts the
// transition before any counter moves.
func (t *Tracker) signal() error {
	if !t.instrumented {
		// U miss: the call site is still wired but no longer records.
		t.uMissCount++
		return nil
	}

	patching := t.armed && t.dMissThreshold != ThresholdNever
	if patching {
		if err := t.site.Ready(); err != nil {
			return err
		}
	}

	if !t.signalled || t.collectStats {
		s, err := t.session.NewlySeen(t.loc.File)
		if err != nil {
			return err
		}
		if err := s.Record(t.loc.Point); err != nil {
			return err
		}
		t.signalled = true
	}

	t.dMissCount++

	if patching {
		if err := t.patcher.Patch(t.site); err != nil {
			return err
		}
		t.patched = true
		t.instrumented = false
		return nil
	}

	if t.dMissThreshold >= 0 && t.dMissCount == t.dMissThreshold {
		// The session deinstruments this probe, and every other location
		// seen since its last pass, in one batch. Until that pass reaches
		// us, further signals keep counting D misses.
		t.session.DeinstrumentSeen()
	}
	return nil
}

//go:nosplit
func (t *Tracker) hit() {
	t.hitCount++
}

// deinstrument flips instrumented off. It reports whether this call did the
// flip and a statistics bucket should be attached.
func (t *Tracker) deinstrument() (wantSibling bool) {
	if !t.instrumented {
		return false
	}
	t.instrumented = false
	return t.collectStats && t.loc.Point > 0
}

// sibling returns the negated-bucket tracker for t. It starts out
// deinstrumented, so it only ever counts U misses and hits.
func (t *Tracker) sibling() *Tracker {
	s := newTracker(t.session, t.loc.Negate(), t.dMissThreshold, t.collectStats)
	s.instrumented = false
	return s
}

func (t *Tracker) stats() Stats {
	return Stats{
		File:    t.loc.File,
		Point:   t.loc.Point,
		DMisses: max(t.dMissCount, 0),
		UMisses: t.uMissCount,
		Hits:    t.hitCount,
		Total:   1 + t.dMissCount + t.uMissCount + t.hitCount,
	}
}
