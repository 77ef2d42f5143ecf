// Copyright 2026 The covprobe Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package location identifies coverage points.
//
// A Location is the pair (file, point) a probe reports on. The point is
// either a source line number or an encoded branch edge (from line, to line).
// Points may be negated to select the parallel statistics bucket used after a
// location has been deinstrumented; negation never changes which line or
// branch a point refers to.
//
// Branch encoding packs both line numbers into a single positive integer:
//
//	bit 30      branch marker
//	bits 15-29  from line (max 0x7FFF)
//	bits 0-14   to line   (max 0x7FFF, 0 means "exit")
package location

import (
	"errors"
	"fmt"
)

// Point is a line number or an encoded branch edge.
type Point int64

const (
	branchFlag Point = 1 << 30

	// MaxBranchLine is the largest line number a branch edge can encode.
	MaxBranchLine = 0x7FFF
)

// ErrBranchLine is returned when a branch endpoint cannot be encoded.
var ErrBranchLine = errors.New("line number too high for branch tracking")

// Line returns the Point for a source line.
func Line(n int) Point {
	return Point(n)
}

// Branch encodes the edge from -> to. A to line of 0 denotes the edge that
// leaves the enclosing function.
func Branch(from, to int) (Point, error) {
	if from < 0 || from > MaxBranchLine {
		return 0, fmt.Errorf("branch %d->%d: from: %w", from, to, ErrBranchLine)
	}
	if to < 0 || to > MaxBranchLine {
		return 0, fmt.Errorf("branch %d->%d: to: %w", from, to, ErrBranchLine)
	}
	return branchFlag | Point(from)<<15 | Point(to), nil
}

// abs strips the negation used for statistics buckets.
func (p Point) abs() Point {
	if p < 0 {
		return -p
	}
	return p
}

// IsBranch reports whether p encodes a branch edge.
func (p Point) IsBranch() bool {
	return p.abs()&branchFlag != 0
}

// IsNegated reports whether p selects the post-deinstrumentation bucket.
func (p Point) IsNegated() bool {
	return p < 0
}

// Negate returns the point selecting the opposite bucket.
func (p Point) Negate() Point {
	return -p
}

// Edge decodes a branch point. ok is false for line points.
func (p Point) Edge() (from, to int, ok bool) {
	if !p.IsBranch() {
		return 0, 0, false
	}
	a := p.abs()
	return int(a>>15) & MaxBranchLine, int(a) & MaxBranchLine, true
}

// LineNumber returns the line a point refers to: the line itself, or the
// origin line of a branch edge.
func (p Point) LineNumber() int {
	if from, _, ok := p.Edge(); ok {
		return from
	}
	return int(p.abs())
}

// String formats lines as "N" and branches as "A->B" or "A->exit".
// Negated points carry a leading "-".
func (p Point) String() string {
	sign := ""
	if p.IsNegated() {
		sign = "-"
	}
	from, to, ok := p.Edge()
	if !ok {
		return fmt.Sprintf("%s%d", sign, int64(p.abs()))
	}
	if to == 0 {
		return fmt.Sprintf("%s%d->exit", sign, from)
	}
	return fmt.Sprintf("%s%d->%d", sign, from, to)
}

// Location identifies one coverage point within one file.
type Location struct {
	File  string
	Point Point
}

// New returns the Location for point p in file.
func New(file string, p Point) Location {
	return Location{File: file, Point: p}
}

// Negate returns the location's statistics-bucket twin.
func (l Location) Negate() Location {
	return Location{File: l.File, Point: l.Point.Negate()}
}

// String formats the location as file:point.
func (l Location) String() string {
	return fmt.Sprintf("%s:%s", l.File, l.Point)
}
