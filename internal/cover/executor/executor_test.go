package executor

import (
	"errors"
	"sync"
	"testing"

	"github.com/petermattis/goid"
)

func TestExecutor_UnboundAllowsAll(t *testing.T) {
	var e Executor
	if err := e.Check(); err != nil {
		t.Errorf("unbound Check() error: %v", err)
	}
	if e.Owner() != 0 {
		t.Errorf("unbound Owner() = %d, want 0", e.Owner())
	}
}

func TestExecutor_OwnerPasses(t *testing.T) {
	var e Executor
	e.Bind()

	if e.Owner() == 0 {
		t.Fatal("Bind() did not record an owner")
	}
	if err := e.Check(); err != nil {
		t.Errorf("owner Check() error: %v", err)
	}
}

func TestExecutor_ForeignGoroutineFails(t *testing.T) {
	var e Executor
	e.Bind()

	var wg sync.WaitGroup
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		err = e.Check()
	}()
	wg.Wait()

	if !errors.Is(err, ErrForeignExecutor) {
		t.Errorf("Expected ErrForeignExecutor, got %v", err)
	}
}

func TestExecutor_Rebind(t *testing.T) {
	var e Executor
	e.Bind()

	var wg sync.WaitGroup
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.Bind()
		err = e.Check()
	}()
	wg.Wait()

	if err != nil {
		t.Errorf("Check() after rebind error: %v", err)
	}
	if e.Check() == nil {
		t.Error("previous owner should be rejected after rebind")
	}
}

// TestGoroutineIDsDiffer guards the ownership check against a goid that
// cannot tell goroutines apart on the running Go version.
func TestGoroutineIDsDiffer(t *testing.T) {
	mine := goid.Get()

	var wg sync.WaitGroup
	var other int64
	wg.Add(1)
	go func() {
		defer wg.Done()
		other = goid.Get()
	}()
	wg.Wait()

	if mine <= 0 || other <= 0 {
		t.Fatalf("goroutine ids = %d, %d; want positive ids", mine, other)
	}
	if mine == other {
		t.Errorf("two goroutines share id %d", mine)
	}
}
