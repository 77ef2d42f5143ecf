//go:build unix

package probe

import (
	"errors"
	"testing"

	"github.com/kolkov/covprobe/internal/cover/patch"
	"github.com/kolkov/covprobe/internal/cover/sink"
)

func TestSignal_MappedBufferSealedWhileExecuting(t *testing.T) {
	m, err := patch.NewMappedBuffer([]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewMappedBuffer() error: %v", err)
	}
	defer m.Close()

	e := NewEngine(Options{})
	s := newFakeSession(sink.KindSet, false, 50, "a.py")
	h := mustCreate(t, e, s, "a.py", 10, 50)
	if err := e.SetImmediate(h, m, 1); err != nil {
		t.Fatalf("SetImmediate() error: %v", err)
	}
	if err := m.Seal(); err != nil {
		t.Fatalf("Seal() error: %v", err)
	}

	if err := e.Signal(h); !errors.Is(err, patch.ErrInvalidBuffer) {
		t.Fatalf("Signal() on sealed mapping: expected ErrInvalidBuffer, got %v", err)
	}
	if inst, _ := e.IsInstrumented(h); !inst {
		t.Error("failed patch deinstrumented the probe")
	}

	if err := m.Unseal(); err != nil {
		t.Fatalf("Unseal() error: %v", err)
	}
	mustSignal(t, e, h, 1)
	if m.Code()[1] != patch.OpJumpForward {
		t.Errorf("code[1] = %d, want %d", m.Code()[1], patch.OpJumpForward)
	}
}
