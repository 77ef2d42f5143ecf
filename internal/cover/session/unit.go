package session

import (
	"fmt"
	"sort"

	"github.com/kolkov/covprobe/internal/cover/location"
	"github.com/kolkov/covprobe/internal/cover/patch"
	"github.com/kolkov/covprobe/internal/cover/probe"
	"github.com/kolkov/covprobe/internal/cover/report"
	"github.com/kolkov/covprobe/internal/cover/sink"
)

// site is one call site of a unit.
type site struct {
	point  location.Point
	handle probe.Handle

	// offset and armed describe the immediate-patch binding.
	offset int
	armed  bool

	// removed is set once a batched pass took the recording call out.
	removed bool

	// bucket receives hits after removal when statistics are collected.
	bucket    probe.Handle
	hasBucket bool
}

// Unit is one compiled unit: the call sites a host wove into a piece of
// code, in order.
type Unit struct {
	session *Session
	file    string
	buf     patch.Buffer

	sites   []site
	byPoint map[location.Point]int

	discarded bool
}

// File returns the file the unit belongs to.
func (u *Unit) File() string {
	return u.file
}

// Len returns the number of call sites.
func (u *Unit) Len() int {
	return len(u.sites)
}

// Handle returns the probe handle of call site i.
func (u *Unit) Handle(i int) (probe.Handle, error) {
	if i < 0 || i >= len(u.sites) {
		return 0, fmt.Errorf("%s: site %d: %w", u.file, i, ErrSiteRange)
	}
	return u.sites[i].handle, nil
}

// Site returns the index of the call site for p.
func (u *Unit) Site(p location.Point) (int, bool) {
	i, ok := u.byPoint[p]
	return i, ok
}

// Removed reports whether call site i no longer calls its probe.
func (u *Unit) Removed(i int) bool {
	if i < 0 || i >= len(u.sites) {
		return false
	}
	return u.sites[i].removed || u.patched(&u.sites[i])
}

// patched reports whether the probe jumped its own call site. The probe
// knows; the buffer bytes may hold the skip opcode by coincidence.
func (u *Unit) patched(st *site) bool {
	if !st.armed {
		return false
	}
	ok, err := u.session.engine.Patched(st.handle)
	return err == nil && ok
}

// Reach executes call site i the way the rewritten instruction stream
// does: the probe is signalled while its call is wired in, a removed call
// either disappears or counts a hit on the statistics bucket, and a
// patched call is jumped over.
func (u *Unit) Reach(i int) error {
	if u.discarded {
		return fmt.Errorf("%s: %w", u.file, ErrDiscarded)
	}
	if i < 0 || i >= len(u.sites) {
		return fmt.Errorf("%s: site %d: %w", u.file, i, ErrSiteRange)
	}

	st := &u.sites[i]
	switch {
	case st.removed && st.hasBucket:
		return u.session.engine.Hit(st.bucket)
	case st.removed, u.patched(st):
		return nil
	}
	return u.session.engine.Signal(st.handle)
}

// ReachPoint executes the call site for p.
func (u *Unit) ReachPoint(p location.Point) error {
	i, ok := u.byPoint[p]
	if !ok {
		return fmt.Errorf("%s: point %s: %w", u.file, p, ErrSiteRange)
	}
	return u.Reach(i)
}

// deinstrument removes every wired call site whose point is in seen. It
// returns the number of sites removed and of buckets attached.
func (u *Unit) deinstrument(seen *sink.Sink) (removed, buckets int) {
	eng := u.session.engine
	for i := range u.sites {
		st := &u.sites[i]
		if st.removed || !seen.Contains(st.point) {
			continue
		}

		bucket, ok, err := eng.Deinstrument(st.handle)
		if err != nil {
			u.session.log.Error().Err(err).Str("file", u.file).Msg("deinstrument failed")
			continue
		}
		st.removed = true
		removed++
		if ok {
			st.bucket, st.hasBucket = bucket, true
			buckets++
		}
	}
	return removed, buckets
}

// release frees the unit's probes. Buckets are left alive.
func (u *Unit) release() {
	for _, st := range u.sites {
		_ = u.session.engine.Release(st.handle)
	}
	u.discarded = true
}

func sortedLines(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

func subtractLines(all, minus map[int]bool) map[int]bool {
	out := make(map[int]bool, len(all))
	for l := range all {
		if !minus[l] {
			out[l] = true
		}
	}
	return out
}

func sortedBranches(set map[report.Branch]bool) []report.Branch {
	out := make([]report.Branch, 0, len(set))
	for br := range set {
		out = append(out, br)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

func subtractBranches(all, minus map[report.Branch]bool) map[report.Branch]bool {
	out := make(map[report.Branch]bool, len(all))
	for br := range all {
		if !minus[br] {
			out[br] = true
		}
	}
	return out
}
