package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/aclements/go-moremath/stats"
	"github.com/google/pprof/profile"

	"github.com/kolkov/covprobe/internal/cover/probe"
)

// Distribution summarizes one counter across trackers.
type Distribution struct {
	Mean   float64
	StdDev float64
	Median float64
	P90    float64
	Min    float64
	Max    float64
}

// StatsSummary aggregates deinstrumentation statistics.
type StatsSummary struct {
	// Trackers is the number of snapshots summarized.
	Trackers int

	// Buckets counts snapshots of negated (post-removal) points.
	Buckets int

	// Entries is the sum of all Total counts.
	Entries int

	DMisses Distribution
	UMisses Distribution
	Totals  Distribution
}

// SummarizeStats computes distributions of D misses, U misses and totals
// over the given snapshots. Never-entered trackers are left out of the
// distributions but still counted in Trackers.
func SummarizeStats(all []probe.Stats) StatsSummary {
	sum := StatsSummary{Trackers: len(all)}

	var d, u, tot []float64
	for _, s := range all {
		if s.Point.IsNegated() {
			sum.Buckets++
		}
		sum.Entries += s.Total
		if s.Total == 0 {
			continue
		}
		d = append(d, float64(s.DMisses))
		u = append(u, float64(s.UMisses))
		tot = append(tot, float64(s.Total))
	}

	sum.DMisses = distribution(d)
	sum.UMisses = distribution(u)
	sum.Totals = distribution(tot)
	return sum
}

func distribution(xs []float64) Distribution {
	if len(xs) == 0 {
		return Distribution{}
	}
	s := (&stats.Sample{Xs: xs}).Sort()
	lo, hi := s.Bounds()
	dist := Distribution{
		Mean:   s.Mean(),
		Median: s.Quantile(0.5),
		P90:    s.Quantile(0.9),
		Min:    lo,
		Max:    hi,
	}
	if len(xs) > 1 {
		dist.StdDev = s.StdDev()
	}
	return dist
}

// WriteStats prints the summary followed by the top trackers by total, as
// (file, point, d_misses, u_misses, total) rows. top <= 0 lists all.
func WriteStats(w io.Writer, all []probe.Stats, top int) error {
	sum := SummarizeStats(all)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "trackers\t%d\n", sum.Trackers)
	fmt.Fprintf(tw, "buckets\t%d\n", sum.Buckets)
	fmt.Fprintf(tw, "entries\t%d\n", sum.Entries)
	fmt.Fprintln(tw, "\tmean\tstddev\tmedian\tp90\tmax")
	for _, m := range []struct {
		name string
		d    Distribution
	}{
		{"d_misses", sum.DMisses},
		{"u_misses", sum.UMisses},
		{"total", sum.Totals},
	} {
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%.0f\t%.0f\t%.0f\n",
			m.name, m.d.Mean, m.d.StdDev, m.d.Median, m.d.P90, m.d.Max)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	ranked := append([]probe.Stats(nil), all...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Total > ranked[j].Total })
	if top > 0 && top < len(ranked) {
		ranked = ranked[:top]
	}

	fmt.Fprintln(w)
	for _, s := range ranked {
		if _, err := fmt.Fprintln(w, s.String()); err != nil {
			return err
		}
	}
	return nil
}

// Sample value indexes in profiles built by StatsProfile.
const (
	sampleDMisses = iota
	sampleUMisses
	sampleHits
	sampleTotal
)

// StatsProfile converts snapshots to a pprof profile. Each tracker becomes a
// sample at its source line, carrying d_misses, u_misses, hits and total.
// Branch points are attributed to their origin line and labelled with the
// edge; negated buckets carry a "bucket" label.
func StatsProfile(all []probe.Stats) (*profile.Profile, error) {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			sampleDMisses: {Type: "d_misses", Unit: "count"},
			sampleUMisses: {Type: "u_misses", Unit: "count"},
			sampleHits:    {Type: "hits", Unit: "count"},
			sampleTotal:   {Type: "total", Unit: "count"},
		},
		PeriodType: &profile.ValueType{Type: "probe", Unit: "count"},
		Period:     1,
	}

	funcs := make(map[string]*profile.Function)
	for _, s := range all {
		fn := funcs[s.File]
		if fn == nil {
			fn = &profile.Function{
				ID:         uint64(len(p.Function) + 1),
				Name:       s.File,
				SystemName: s.File,
				Filename:   s.File,
			}
			funcs[s.File] = fn
			p.Function = append(p.Function, fn)
		}

		loc := &profile.Location{
			ID:   uint64(len(p.Location) + 1),
			Line: []profile.Line{{Function: fn, Line: int64(s.Point.LineNumber())}},
		}
		p.Location = append(p.Location, loc)

		labels := map[string][]string{"point": {s.Point.String()}}
		if s.Point.IsNegated() {
			labels["bucket"] = []string{"removed"}
		}
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value: []int64{
				sampleDMisses: int64(s.DMisses),
				sampleUMisses: int64(s.UMisses),
				sampleHits:    int64(s.Hits),
				sampleTotal:   int64(s.Total),
			},
			Label: labels,
		})
	}

	if err := p.CheckValid(); err != nil {
		return nil, fmt.Errorf("stats profile: %w", err)
	}
	return p, nil
}

// WritePprof writes the snapshots as a gzipped pprof profile.
func WritePprof(w io.Writer, all []probe.Stats) error {
	p, err := StatsProfile(all)
	if err != nil {
		return err
	}
	return p.Write(w)
}
