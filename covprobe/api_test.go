package covprobe_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/pprof/profile"

	"github.com/kolkov/covprobe/covprobe"
)

func statsSession(t *testing.T) *covprobe.Session {
	t.Helper()
	cfg := covprobe.DefaultConfig()
	cfg.Threshold = 1
	cfg.CollectStats = true

	s, err := covprobe.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	u, err := s.Instrument("a.py", []covprobe.Point{1, 2}, nil, nil)
	if err != nil {
		t.Fatalf("Instrument() error: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := u.Reach(0); err != nil {
			t.Fatalf("Reach() error: %v", err)
		}
	}
	return s
}

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	if err := covprobe.WriteStats(&buf, statsSession(t), 1); err != nil {
		t.Fatalf("WriteStats() error: %v", err)
	}
	if !strings.Contains(buf.String(), `"a.py"`) {
		t.Errorf("stats output missing tracker row:\n%s", buf.String())
	}
}

func TestWritePprof(t *testing.T) {
	s := statsSession(t)

	var buf bytes.Buffer
	if err := covprobe.WritePprof(&buf, s); err != nil {
		t.Fatalf("WritePprof() error: %v", err)
	}
	p, err := profile.Parse(&buf)
	if err != nil {
		t.Fatalf("profile.Parse() error: %v", err)
	}
	if len(p.Sample) != len(s.Stats()) {
		t.Errorf("profile has %d samples, want %d", len(p.Sample), len(s.Stats()))
	}
	if len(p.SampleType) != 4 || p.SampleType[3].Type != "total" {
		t.Errorf("sample types = %v", p.SampleType)
	}
}
