// Copyright 2026 The covprobe Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sink implements the per-file coverage sinks probes record into.
//
// A Sink comes in one of two shapes, fixed when it is created:
//
//   - KindSet: a deduplicating set. Recording a point that is already present
//     is a no-op.
//   - KindCounter: a multiplicity counter. Every record increments the point's
//     count, including the first one.
//
// The shape is a tag resolved once, when the sink is obtained, so recording
// never probes the dynamic type of the collection. A zero Sink has no shape
// and refuses every record with ErrShape.
//
// Thread Safety: Sinks are not synchronized. They are written only from the
// single logical executor that drives the probes of a session; owners that
// read them from other goroutines must exchange the Table first (see
// Table.Fresh).
package sink

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kolkov/covprobe/internal/cover/location"
)

// Kind selects a sink shape.
type Kind int

const (
	// KindInvalid is the zero Kind; a sink of this kind accepts no records.
	KindInvalid Kind = iota
	// KindSet deduplicates points.
	KindSet
	// KindCounter counts point multiplicity.
	KindCounter
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSet:
		return "set"
	case KindCounter:
		return "counter"
	default:
		return "invalid"
	}
}

var (
	// ErrShape is returned when a sink is neither a set nor a counter.
	ErrShape = errors.New("coverage sink is neither a set nor a counter")

	// ErrMissing is returned when a file has no sink entry.
	ErrMissing = errors.New("missing sink entry")
)

// Sink records which points of one file were reached.
type Sink struct {
	kind   Kind
	counts map[location.Point]int
}

// NewSet returns an empty deduplicating sink.
func NewSet() *Sink {
	return New(KindSet)
}

// NewCounter returns an empty multiplicity sink.
func NewCounter() *Sink {
	return New(KindCounter)
}

// New returns an empty sink of the given kind. An invalid kind yields a sink
// that rejects every record.
func New(kind Kind) *Sink {
	return &Sink{kind: kind, counts: make(map[location.Point]int)}
}

// Kind returns the sink's shape.
func (s *Sink) Kind() Kind {
	return s.kind
}

// Record inserts p (set) or increments its count (counter).
//
// Repeated records are expected: a set absorbs them, a counter accumulates
// them. Neither shape special-cases the first occurrence.
func (s *Sink) Record(p location.Point) error {
	switch s.kind {
	case KindSet:
		s.counts[p] = 1
	case KindCounter:
		s.counts[p]++
	default:
		return fmt.Errorf("record %s: %w", p, ErrShape)
	}
	return nil
}

// Contains reports whether p has been recorded.
func (s *Sink) Contains(p location.Point) bool {
	_, ok := s.counts[p]
	return ok
}

// Count returns how often p was recorded. Sets report 1 for present points.
func (s *Sink) Count(p location.Point) int {
	return s.counts[p]
}

// Len returns the number of distinct points recorded.
func (s *Sink) Len() int {
	return len(s.counts)
}

// Points returns the distinct recorded points in ascending order.
func (s *Sink) Points() []location.Point {
	pts := make([]location.Point, 0, len(s.counts))
	for p := range s.counts {
		pts = append(pts, p)
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i] < pts[j] })
	return pts
}

// Total returns the sum of all counts.
func (s *Sink) Total() int {
	n := 0
	for _, c := range s.counts {
		n += c
	}
	return n
}
