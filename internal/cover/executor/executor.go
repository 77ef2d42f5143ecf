// Copyright 2026 The covprobe Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package executor enforces the single-logical-executor precondition.
//
// Probes are driven without locks: the engine assumes one logical executor
// (one goroutine) enters all of its probes, in whatever nesting order control
// flow dictates. Executor makes that assumption checkable. It remembers the
// goroutine that bound it and reports calls from any other goroutine.
//
// Checking costs a goroutine id lookup per call, so engines only enable it
// on request (strict mode). The check never blocks.
package executor

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// ErrForeignExecutor is returned when a probe is entered from a goroutine
// other than the bound executor.
var ErrForeignExecutor = errors.New("probe entered from a foreign goroutine")

// Executor records the goroutine that owns a set of probes.
//
// The zero value is unbound; Check succeeds on an unbound Executor.
type Executor struct {
	owner atomic.Int64
}

// Bind makes the calling goroutine the owner. Rebinding moves ownership.
func (e *Executor) Bind() {
	e.owner.Store(goid.Get())
}

// Owner returns the owning goroutine id, or 0 if unbound.
func (e *Executor) Owner() int64 {
	return e.owner.Load()
}

// Check returns ErrForeignExecutor if the caller is not the owner.
func (e *Executor) Check() error {
	owner := e.owner.Load()
	if owner == 0 {
		return nil
	}
	if id := goid.Get(); id != owner {
		return fmt.Errorf("goroutine %d, owner %d: %w", id, owner, ErrForeignExecutor)
	}
	return nil
}
