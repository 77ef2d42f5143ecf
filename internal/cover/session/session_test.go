package session

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kolkov/covprobe/internal/cover/location"
	"github.com/kolkov/covprobe/internal/cover/patch"
	"github.com/kolkov/covprobe/internal/cover/probe"
	"github.com/kolkov/covprobe/internal/cover/report"
	"github.com/kolkov/covprobe/internal/cover/sink"
)

func newSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func lines(ns ...int) []location.Point {
	out := make([]location.Point, len(ns))
	for i, n := range ns {
		out[i] = location.Line(n)
	}
	return out
}

func mustReach(t *testing.T, u *Unit, i, times int) {
	t.Helper()
	for n := 0; n < times; n++ {
		if err := u.Reach(i); err != nil {
			t.Fatalf("Reach(%d) error: %v", i, err)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	s := newSession(t, DefaultConfig())
	if s.Threshold() != DefaultThreshold {
		t.Errorf("Threshold() = %d, want %d", s.Threshold(), DefaultThreshold)
	}
	if s.CollectStats() {
		t.Error("CollectStats() should default to false")
	}
	if s.cfg.SinkKind != sink.KindSet {
		t.Errorf("SinkKind = %v, want set", s.cfg.SinkKind)
	}

	stats := newSession(t, Config{CollectStats: true})
	if stats.cfg.SinkKind != sink.KindCounter {
		t.Errorf("SinkKind with stats = %v, want counter", stats.cfg.SinkKind)
	}
}

func TestNew_BadThreshold(t *testing.T) {
	if _, err := New(Config{Threshold: -5}); !errors.Is(err, probe.ErrBadThreshold) {
		t.Errorf("Expected ErrBadThreshold, got %v", err)
	}
}

// TestScenario_ThresholdTwo runs a.py line 10 four times with threshold 2:
// the pass fires on the third signal and removes the call site, so the
// fourth execution never reaches the probe.
func TestScenario_ThresholdTwo(t *testing.T) {
	s := newSession(t, Config{Threshold: 2})
	u, err := s.Instrument("a.py", lines(10), nil, nil)
	if err != nil {
		t.Fatalf("Instrument() error: %v", err)
	}

	mustReach(t, u, 0, 2)
	if s.Passes() != 0 {
		t.Fatalf("pass ran after 2 executions")
	}
	mustReach(t, u, 0, 1)
	if s.Passes() != 1 || !u.Removed(0) {
		t.Fatalf("passes = %d removed = %v after 3 executions", s.Passes(), u.Removed(0))
	}
	mustReach(t, u, 0, 1)

	got := s.Stats()
	want := []probe.Stats{{File: "a.py", Point: 10, DMisses: 2, UMisses: 0, Total: 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Stats() = %v, want %v", got, want)
	}

	cov := s.Coverage()
	if f := cov.Files["a.py"]; !reflect.DeepEqual(f.ExecutedLines, []int{10}) || len(f.MissingLines) != 0 {
		t.Errorf("coverage = %+v", f)
	}
}

func TestDeinstrumentSeen_BatchesAllSeenPoints(t *testing.T) {
	s := newSession(t, Config{Threshold: 3})
	a, _ := s.Instrument("a.py", lines(1, 2, 3), nil, nil)
	b, _ := s.Instrument("b.py", lines(7), nil, nil)

	mustReach(t, a, 1, 1)
	mustReach(t, b, 0, 1)
	mustReach(t, a, 0, 4) // fourth signal of line 1 triggers the pass

	if s.Passes() != 1 {
		t.Fatalf("passes = %d, want 1", s.Passes())
	}
	for _, tc := range []struct {
		u    *Unit
		i    int
		want bool
	}{
		{a, 0, true}, {a, 1, true}, {a, 2, false}, {b, 0, true},
	} {
		if got := tc.u.Removed(tc.i); got != tc.want {
			t.Errorf("%s site %d removed = %v, want %v", tc.u.File(), tc.i, got, tc.want)
		}
	}

	// Seen points were folded into all-seen before the table was swapped.
	cov := s.Coverage()
	if got := cov.Files["a.py"].ExecutedLines; !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("a.py executed = %v", got)
	}
	if got := cov.Files["a.py"].MissingLines; !reflect.DeepEqual(got, []int{3}) {
		t.Errorf("a.py missing = %v", got)
	}
	if got := cov.Files["b.py"].ExecutedLines; !reflect.DeepEqual(got, []int{7}) {
		t.Errorf("b.py executed = %v", got)
	}
}

func TestCoverage_DoesNotDisturbPendingPass(t *testing.T) {
	s := newSession(t, Config{Threshold: 1})
	u, _ := s.Instrument("a.py", lines(1, 2), nil, nil)

	mustReach(t, u, 1, 1)
	if f := s.Coverage().Files["a.py"]; !reflect.DeepEqual(f.ExecutedLines, []int{2}) {
		t.Fatalf("executed = %v", f.ExecutedLines)
	}

	// Line 2 is still newly seen, so the pass triggered by line 1 removes it.
	mustReach(t, u, 0, 2)
	if !u.Removed(1) {
		t.Error("Coverage() consumed the newly seen points")
	}
}

func TestCoverage_Meta(t *testing.T) {
	s := newSession(t, Config{Threshold: DefaultThreshold, Branch: true, Version: "1.2.3"})
	if _, err := s.Instrument("a.py", lines(1), nil, nil); err != nil {
		t.Fatal(err)
	}

	cov := s.Coverage()
	want := report.Meta{
		Software:       report.Software,
		Version:        "1.2.3",
		Timestamp:      "2026-01-02T03:04:05.000000",
		BranchCoverage: true,
	}
	if cov.Meta != want {
		t.Errorf("Meta = %+v, want %+v", cov.Meta, want)
	}
	if cov.Summary.MissingLines != 1 || cov.Summary.PercentCovered != 0 {
		t.Errorf("Summary = %+v", cov.Summary)
	}
}

func TestCoverage_Branches(t *testing.T) {
	br1, _ := location.Branch(1, 2)
	br2, _ := location.Branch(1, 0)

	s := newSession(t, Config{Threshold: DefaultThreshold, Branch: true})
	u, err := s.Instrument("a.py", []location.Point{1, 2, br1, br2}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	mustReach(t, u, 0, 1)
	mustReach(t, u, 2, 1)

	f := s.Coverage().Files["a.py"]
	if !reflect.DeepEqual(f.ExecutedBranches, []report.Branch{{1, 2}}) {
		t.Errorf("executed branches = %v", f.ExecutedBranches)
	}
	if !reflect.DeepEqual(f.MissingBranches, []report.Branch{{1, 0}}) {
		t.Errorf("missing branches = %v", f.MissingBranches)
	}
	if !reflect.DeepEqual(f.ExecutedLines, []int{1}) || !reflect.DeepEqual(f.MissingLines, []int{2}) {
		t.Errorf("lines = %v / %v", f.ExecutedLines, f.MissingLines)
	}
}

func TestInstrument_IgnoresBranchesWhenDisabled(t *testing.T) {
	br, _ := location.Branch(1, 2)
	s := newSession(t, DefaultConfig())
	u, err := s.Instrument("a.py", []location.Point{1, br}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if u.Len() != 1 {
		t.Errorf("unit has %d sites, want 1", u.Len())
	}
	if _, ok := u.Site(br); ok {
		t.Error("branch point got a call site")
	}
}

func TestInstrument_Errors(t *testing.T) {
	s := newSession(t, Config{Threshold: DefaultThreshold, Immediate: true})

	if _, err := s.Instrument("", lines(1), nil, nil); !errors.Is(err, probe.ErrEmptyFile) {
		t.Errorf("Expected ErrEmptyFile, got %v", err)
	}
	if _, err := s.Instrument("a.py", lines(1, 2), patch.Bytes{0, 0}, []int{0}); !errors.Is(err, ErrOffsets) {
		t.Errorf("Expected ErrOffsets, got %v", err)
	}
	if _, err := s.Instrument("a.py", lines(1, 2), patch.Bytes{0, 0}, []int{0, 9}); !errors.Is(err, patch.ErrInvalidBuffer) {
		t.Errorf("Expected ErrInvalidBuffer, got %v", err)
	}
	// Failed units leave nothing behind.
	if n := s.Engine().Len(); n != 0 {
		t.Errorf("engine holds %d probes after failures", n)
	}
}

func TestInstrument_DuplicateUntilDiscarded(t *testing.T) {
	s := newSession(t, DefaultConfig())
	u, _ := s.Instrument("a.py", lines(1, 2), nil, nil)

	if _, err := s.Instrument("a.py", lines(2), nil, nil); !errors.Is(err, probe.ErrDuplicateLocation) {
		t.Fatalf("Expected ErrDuplicateLocation, got %v", err)
	}

	s.Discard(u)
	if err := u.Reach(0); !errors.Is(err, ErrDiscarded) {
		t.Errorf("Reach on discarded unit: expected ErrDiscarded, got %v", err)
	}
	if _, err := s.Instrument("a.py", lines(2), nil, nil); err != nil {
		t.Errorf("Instrument() after Discard error: %v", err)
	}
	// Code lines survive the discarded unit.
	if got := s.Coverage().Files["a.py"].MissingLines; !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("missing = %v", got)
	}
}

func TestReach_OutOfRange(t *testing.T) {
	s := newSession(t, DefaultConfig())
	u, _ := s.Instrument("a.py", lines(1), nil, nil)
	if err := u.Reach(3); !errors.Is(err, ErrSiteRange) {
		t.Errorf("Expected ErrSiteRange, got %v", err)
	}
	if err := u.ReachPoint(9); !errors.Is(err, ErrSiteRange) {
		t.Errorf("Expected ErrSiteRange, got %v", err)
	}
	if _, err := u.Handle(-1); !errors.Is(err, ErrSiteRange) {
		t.Errorf("Expected ErrSiteRange, got %v", err)
	}
}

func TestImmediate_PatchesOnFirstSignal(t *testing.T) {
	s := newSession(t, Config{Threshold: DefaultThreshold, Immediate: true})
	code := make(patch.Bytes, 8)
	u, err := s.Instrument("a.py", lines(1, 2), code, []int{0, 4})
	if err != nil {
		t.Fatalf("Instrument() error: %v", err)
	}

	mustReach(t, u, 0, 3)

	if code[0] != patch.OpJumpForward || code[4] != 0 {
		t.Errorf("code = %v, want only offset 0 patched", code)
	}
	if !u.Removed(0) || u.Removed(1) {
		t.Errorf("removed = %v/%v", u.Removed(0), u.Removed(1))
	}
	if s.Passes() != 0 {
		t.Errorf("immediate mode ran %d passes", s.Passes())
	}

	h, _ := u.Handle(0)
	st, _ := s.Engine().Stats(h)
	if st.Total != 1 || st.DMisses != 0 {
		t.Errorf("stats = %v, want a single entry", st)
	}
	if got := s.Coverage().Files["a.py"].ExecutedLines; !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("executed = %v", got)
	}
}

func TestImmediate_SkipOpcodeAlreadyInBuffer(t *testing.T) {
	s := newSession(t, Config{Threshold: DefaultThreshold, Immediate: true})
	code := patch.Bytes{patch.OpJumpForward, 0, 0, 0}
	u, err := s.Instrument("a.py", lines(1), code, []int{0})
	if err != nil {
		t.Fatalf("Instrument() error: %v", err)
	}
	if u.Removed(0) {
		t.Fatal("unexecuted site reported removed")
	}

	mustReach(t, u, 0, 2)

	h, _ := u.Handle(0)
	st, _ := s.Engine().Stats(h)
	if st.Total != 1 {
		t.Errorf("stats = %v, want the first reach recorded", st)
	}
	if !u.Removed(0) {
		t.Error("site not removed after its first reach")
	}
	if got := s.Coverage().Files["a.py"].ExecutedLines; !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("executed = %v, want [1]", got)
	}
}

func TestImmediate_SealedBufferKeepsSiteWired(t *testing.T) {
	s := newSession(t, Config{Threshold: DefaultThreshold, Immediate: true})
	buf := &sealableBuffer{code: make(patch.Bytes, 4), writable: true}
	u, err := s.Instrument("a.py", lines(1), buf, []int{0})
	if err != nil {
		t.Fatalf("Instrument() error: %v", err)
	}

	buf.writable = false
	if err := u.Reach(0); !errors.Is(err, patch.ErrInvalidBuffer) {
		t.Fatalf("Reach() on sealed buffer: expected ErrInvalidBuffer, got %v", err)
	}
	if u.Removed(0) {
		t.Error("failed patch removed the site")
	}

	buf.writable = true
	mustReach(t, u, 0, 1)
	if !u.Removed(0) || buf.code[0] != patch.OpJumpForward {
		t.Errorf("removed = %v code = %v after unseal", u.Removed(0), buf.code)
	}
}

// sealableBuffer is an instruction buffer the host can seal after binding.
type sealableBuffer struct {
	code     patch.Bytes
	writable bool
}

func (b *sealableBuffer) Code() []byte   { return b.code }
func (b *sealableBuffer) Writable() bool { return b.writable }

func TestImmediate_FallsBackWhenUnsupported(t *testing.T) {
	var logBuf bytes.Buffer
	logger := zerolog.New(&logBuf)

	s := newSession(t, Config{Threshold: 1, Immediate: true, Patcher: patch.Unsupported(), Logger: &logger})
	if !strings.Contains(logBuf.String(), "batching instead") {
		t.Errorf("fallback not logged: %q", logBuf.String())
	}

	code := make(patch.Bytes, 4)
	u, err := s.Instrument("a.py", lines(1), code, []int{0})
	if err != nil {
		t.Fatalf("Instrument() error: %v", err)
	}
	mustReach(t, u, 0, 2)

	if code[0] != 0 {
		t.Error("unsupported patcher wrote code")
	}
	if s.Passes() != 1 || !u.Removed(0) {
		t.Errorf("batched fallback: passes = %d removed = %v", s.Passes(), u.Removed(0))
	}
}

func TestCollectStats_RemovedSitesCountHits(t *testing.T) {
	s := newSession(t, Config{Threshold: 2, CollectStats: true})
	u, _ := s.Instrument("a.py", lines(10), nil, nil)

	mustReach(t, u, 0, 5)

	all := s.Stats()
	want := []probe.Stats{
		{File: "a.py", Point: -10, Hits: 2, Total: 2},
		{File: "a.py", Point: 10, DMisses: 2, Total: 3},
	}
	if !reflect.DeepEqual(all, want) {
		t.Errorf("Stats() = %v, want %v", all, want)
	}

	// The bucket never shows up as coverage.
	f := s.Coverage().Files["a.py"]
	if !reflect.DeepEqual(f.ExecutedLines, []int{10}) {
		t.Errorf("executed = %v", f.ExecutedLines)
	}
}

func TestReset_ForgetsSeenPoints(t *testing.T) {
	s := newSession(t, Config{Threshold: 0})
	u, _ := s.Instrument("a.py", lines(1, 2), nil, nil)
	mustReach(t, u, 0, 1)

	s.Reset()

	f := s.Coverage().Files["a.py"]
	if len(f.ExecutedLines) != 0 || !reflect.DeepEqual(f.MissingLines, []int{1, 2}) {
		t.Errorf("after Reset: %v / %v", f.ExecutedLines, f.MissingLines)
	}
	// Removed sites stay removed; unseen ones still record.
	mustReach(t, u, 0, 1)
	mustReach(t, u, 1, 1)
	f = s.Coverage().Files["a.py"]
	if !reflect.DeepEqual(f.ExecutedLines, []int{2}) {
		t.Errorf("executed = %v", f.ExecutedLines)
	}
}

func TestCoverage_Simplifier(t *testing.T) {
	s := newSession(t, Config{Threshold: DefaultThreshold, Simplifier: report.PathSimplifierAt("/src")})
	u, _ := s.Instrument("/src/pkg/a.py", lines(1), nil, nil)
	mustReach(t, u, 0, 1)

	cov := s.Coverage()
	if _, ok := cov.Files["pkg/a.py"]; !ok {
		t.Errorf("files = %v", cov.FileNames())
	}
}

func TestDeinstrumentSeen_Logs(t *testing.T) {
	var logBuf bytes.Buffer
	logger := zerolog.New(&logBuf).Level(zerolog.DebugLevel)

	s := newSession(t, Config{Threshold: 0, Logger: &logger})
	u, _ := s.Instrument("a.py", lines(1), nil, nil)
	mustReach(t, u, 0, 1)

	out := logBuf.String()
	for _, want := range []string{`"message":"instrumented unit"`, `"message":"deinstrumented seen call sites"`, `"removed":1`, `"component":"session"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %s:\n%s", want, out)
		}
	}
}

func TestStrict_ForeignGoroutine(t *testing.T) {
	s := newSession(t, Config{Threshold: DefaultThreshold, Strict: true})
	u, _ := s.Instrument("a.py", lines(1), nil, nil)

	done := make(chan error)
	go func() { done <- u.Reach(0) }()
	if err := <-done; err == nil {
		t.Error("Reach from a foreign goroutine succeeded")
	}
	mustReach(t, u, 0, 1)
}
