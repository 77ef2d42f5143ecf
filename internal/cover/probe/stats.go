package probe

import (
	"fmt"
	"sort"

	"github.com/kolkov/covprobe/internal/cover/location"
)

// Stats is a snapshot of one tracker's counters.
//
// Total counts every entry into the tracker:
//
//	Total = 1 + raw D misses + U misses + hits
//
// The leading 1 stands for the first, recording signal; the raw D miss count
// is -1 before it, so a tracker that was never entered reports Total 0.
// DMisses is clamped at 0 for reporting.
type Stats struct {
	File    string
	Point   location.Point
	DMisses int
	UMisses int
	Hits    int
	Total   int
}

// String formats the snapshot the way stats tuples are printed:
// (file, point, d_misses, u_misses, total).
func (s Stats) String() string {
	return fmt.Sprintf("(%q, %s, %d, %d, %d)", s.File, s.Point, s.DMisses, s.UMisses, s.Total)
}

// All returns snapshots of every live tracker, ordered by file, then point.
func (e *Engine) All() []Stats {
	out := make([]Stats, 0, len(e.index))
	for _, s := range e.slots {
		if s.t != nil {
			out = append(out, s.t.stats())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Point < out[j].Point
	})
	return out
}
