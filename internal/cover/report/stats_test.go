package report

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/google/pprof/profile"

	"github.com/kolkov/covprobe/internal/cover/location"
	"github.com/kolkov/covprobe/internal/cover/probe"
)

func sampleStats() []probe.Stats {
	br, _ := location.Branch(4, 0)
	return []probe.Stats{
		{File: "a.py", Point: 10, DMisses: 2, Total: 3},
		{File: "a.py", Point: -10, UMisses: 4, Hits: 1, Total: 5},
		{File: "a.py", Point: br, DMisses: 4, Total: 5},
		{File: "b.py", Point: 1, DMisses: 0, Total: 1},
		{File: "b.py", Point: 2},
	}
}

func TestSummarizeStats(t *testing.T) {
	sum := SummarizeStats(sampleStats())

	if sum.Trackers != 5 || sum.Buckets != 1 || sum.Entries != 14 {
		t.Errorf("counts = %d trackers, %d buckets, %d entries", sum.Trackers, sum.Buckets, sum.Entries)
	}
	// Never-entered tracker excluded: D misses {2, 0, 4, 0}.
	if sum.DMisses.Mean != 1.5 {
		t.Errorf("DMisses.Mean = %v, want 1.5", sum.DMisses.Mean)
	}
	if sum.DMisses.Max != 4 || sum.DMisses.Min != 0 {
		t.Errorf("DMisses bounds = [%v, %v]", sum.DMisses.Min, sum.DMisses.Max)
	}
	if sum.Totals.Max != 5 || sum.UMisses.Max != 4 {
		t.Errorf("maxima = total %v, u %v", sum.Totals.Max, sum.UMisses.Max)
	}
	// Sorted {0, 0, 2, 4}: the interpolated median sits halfway between 0 and 2.
	if math.Abs(sum.DMisses.Median-1) > 1e-9 {
		t.Errorf("DMisses.Median = %v, want 1", sum.DMisses.Median)
	}
	if p90 := sum.DMisses.P90; p90 < sum.DMisses.Median || p90 > sum.DMisses.Max {
		t.Errorf("DMisses.P90 = %v outside [median, max]", p90)
	}
	if math.IsNaN(sum.DMisses.StdDev) || sum.DMisses.StdDev <= 0 {
		t.Errorf("DMisses.StdDev = %v", sum.DMisses.StdDev)
	}
}

func TestSummarizeStats_Empty(t *testing.T) {
	sum := SummarizeStats(nil)
	if sum.Trackers != 0 || sum.DMisses != (Distribution{}) {
		t.Errorf("SummarizeStats(nil) = %+v", sum)
	}
}

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteStats(&buf, sampleStats(), 2); err != nil {
		t.Fatalf("WriteStats() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"trackers", "d_misses", `("a.py", -10, 0, 4, 5)`, `("a.py", 4->exit, 4, 0, 5)`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, `("a.py", 10, 2, 0, 3)`) {
		t.Errorf("top 2 listed a third tracker:\n%s", out)
	}
}

func TestStatsProfile(t *testing.T) {
	p, err := StatsProfile(sampleStats())
	if err != nil {
		t.Fatalf("StatsProfile() error: %v", err)
	}
	if len(p.Sample) != 5 || len(p.Function) != 2 {
		t.Fatalf("got %d samples, %d functions", len(p.Sample), len(p.Function))
	}

	branch := p.Sample[2]
	if line := branch.Location[0].Line[0].Line; line != 4 {
		t.Errorf("branch attributed to line %d, want 4", line)
	}
	if branch.Label["point"][0] != "4->exit" {
		t.Errorf("branch label = %v", branch.Label["point"])
	}
	if p.Sample[1].Label["bucket"] == nil {
		t.Error("negated bucket not labelled")
	}
}

func TestWritePprof_Parses(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePprof(&buf, sampleStats()); err != nil {
		t.Fatalf("WritePprof() error: %v", err)
	}

	p, err := profile.Parse(&buf)
	if err != nil {
		t.Fatalf("profile.Parse() error: %v", err)
	}
	if len(p.SampleType) != 4 || p.SampleType[3].Type != "total" {
		t.Errorf("sample types = %v", p.SampleType)
	}
	var total int64
	for _, s := range p.Sample {
		total += s.Value[sampleTotal]
	}
	if total != 14 {
		t.Errorf("total entries = %d, want 14", total)
	}
}
