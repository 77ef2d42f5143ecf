// Copyright 2026 The covprobe Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report holds the coverage document produced by a session and the
// readers and writers built around it.
//
// The document layout:
//
//	{
//	  "meta":    {"software": "covprobe", "version": ..., "branch_coverage": ...},
//	  "files":   {"a.py": {"executed_lines": [...], "missing_lines": [...], ...}},
//	  "summary": {"covered_lines": ..., "missing_lines": ..., "percent_covered": ...}
//	}
//
// Branches are encoded as two-element arrays [from, to]; a destination of 0
// means the branch leaves the enclosing function.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// Software identifies documents written by this tool.
const Software = "covprobe"

// Branch is a source/destination line pair.
type Branch [2]int

// From returns the source line.
func (b Branch) From() int { return b[0] }

// To returns the destination line, 0 for a function exit.
func (b Branch) To() int { return b[1] }

func (b Branch) String() string {
	if b[1] == 0 {
		return fmt.Sprintf("%d->exit", b[0])
	}
	return fmt.Sprintf("%d->%d", b[0], b[1])
}

func lessBranch(a, b Branch) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	return a[1] < b[1]
}

// Meta describes who wrote a document and how.
type Meta struct {
	Software       string `json:"software"`
	Version        string `json:"version"`
	Timestamp      string `json:"timestamp"`
	BranchCoverage bool   `json:"branch_coverage"`
	ShowContexts   bool   `json:"show_contexts"`
}

// Summary aggregates line and branch counts for a file or a document.
type Summary struct {
	CoveredLines    int     `json:"covered_lines"`
	MissingLines    int     `json:"missing_lines"`
	CoveredBranches int     `json:"covered_branches,omitempty"`
	MissingBranches int     `json:"missing_branches,omitempty"`
	PercentCovered  float64 `json:"percent_covered"`
}

// File is the coverage of a single source file.
type File struct {
	ExecutedLines    []int    `json:"executed_lines"`
	MissingLines     []int    `json:"missing_lines"`
	ExecutedBranches []Branch `json:"executed_branches,omitempty"`
	MissingBranches  []Branch `json:"missing_branches,omitempty"`
	Summary          Summary  `json:"summary"`
}

// Coverage is a complete coverage document.
type Coverage struct {
	Meta    Meta             `json:"meta"`
	Files   map[string]*File `json:"files"`
	Summary Summary          `json:"summary"`
}

// FileNames returns the document's file names in sorted order.
func (c *Coverage) FileNames() []string {
	names := make([]string, 0, len(c.Files))
	for name := range c.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Errors returned by Merge.
var (
	// ErrForeignFormat is returned when the target was not written by covprobe.
	ErrForeignFormat = errors.New("cannot merge coverage: only " + Software + " format supported")

	// ErrContexts is returned when either document carries contexts.
	ErrContexts = errors.New("merging coverage with show_contexts unsupported")

	// ErrBranchMissing is returned when the target has branch coverage and
	// the source does not.
	ErrBranchMissing = errors.New("cannot merge coverage: branch coverage missing")

	// ErrIncompatibleVersion is returned when the documents come from
	// different major versions.
	ErrIncompatibleVersion = errors.New("cannot merge coverage: incompatible versions")
)

// AddSummaries computes (or recomputes) the per-file and global summaries.
//
// Branches count toward percent_covered alongside lines. A file or document
// with nothing to cover is 100% covered.
func AddSummaries(c *Coverage) {
	var global Summary
	var gNom, gDen int

	for _, f := range c.Files {
		s := Summary{
			CoveredLines: len(f.ExecutedLines),
			MissingLines: len(f.MissingLines),
		}
		nom := s.CoveredLines
		den := nom + s.MissingLines

		if c.Meta.BranchCoverage || f.ExecutedBranches != nil || f.MissingBranches != nil {
			s.CoveredBranches = len(f.ExecutedBranches)
			s.MissingBranches = len(f.MissingBranches)
			nom += s.CoveredBranches
			den += s.CoveredBranches + s.MissingBranches
		}
		s.PercentCovered = percent(nom, den)
		f.Summary = s

		global.CoveredLines += s.CoveredLines
		global.MissingLines += s.MissingLines
		global.CoveredBranches += s.CoveredBranches
		global.MissingBranches += s.MissingBranches
		gNom += nom
		gDen += den
	}

	global.PercentCovered = percent(gNom, gDen)
	c.Summary = global
}

func percent(nom, den int) float64 {
	if den == 0 {
		return 100.0
	}
	return 100 * float64(nom) / float64(den)
}

// Merge folds b into a. Lines or branches executed in either document are
// executed in the result; the rest stay missing. Summaries are recomputed.
func Merge(a, b *Coverage) error {
	if a.Meta.Software != Software {
		return ErrForeignFormat
	}
	if a.Meta.ShowContexts || b.Meta.ShowContexts {
		return ErrContexts
	}
	branch := a.Meta.BranchCoverage
	if branch && !b.Meta.BranchCoverage {
		return ErrBranchMissing
	}
	if err := checkVersions(a.Meta.Version, b.Meta.Version); err != nil {
		return err
	}

	if a.Files == nil {
		a.Files = make(map[string]*File)
	}
	for name, bf := range b.Files {
		af := a.Files[name]
		if af == nil {
			af = &File{}
		}

		merged := &File{}
		merged.ExecutedLines, merged.MissingLines = mergeLines(
			af.ExecutedLines, bf.ExecutedLines, af.MissingLines, bf.MissingLines)
		if branch {
			merged.ExecutedBranches, merged.MissingBranches = mergeBranches(
				af.ExecutedBranches, bf.ExecutedBranches, af.MissingBranches, bf.MissingBranches)
		}
		a.Files[name] = merged
	}

	AddSummaries(a)
	return nil
}

// checkVersions rejects documents whose major versions differ. Versions that
// are not valid semantic versions are not compared.
func checkVersions(a, b string) error {
	va, vb := canonicalVersion(a), canonicalVersion(b)
	if va == "" || vb == "" {
		return nil
	}
	if semver.Major(va) != semver.Major(vb) {
		return fmt.Errorf("%s and %s: %w", a, b, ErrIncompatibleVersion)
	}
	return nil
}

func canonicalVersion(v string) string {
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}

func mergeLines(exA, exB, missA, missB []int) (executed, missing []int) {
	ex := make(map[int]bool, len(exA)+len(exB))
	for _, l := range exA {
		ex[l] = true
	}
	for _, l := range exB {
		ex[l] = true
	}
	miss := make(map[int]bool, len(missA)+len(missB))
	for _, l := range append(append([]int(nil), missA...), missB...) {
		if !ex[l] {
			miss[l] = true
		}
	}
	return sortedInts(ex), sortedInts(miss)
}

func mergeBranches(exA, exB, missA, missB []Branch) (executed, missing []Branch) {
	ex := make(map[Branch]bool, len(exA)+len(exB))
	for _, br := range exA {
		ex[br] = true
	}
	for _, br := range exB {
		ex[br] = true
	}
	miss := make(map[Branch]bool, len(missA)+len(missB))
	for _, br := range append(append([]Branch(nil), missA...), missB...) {
		if !ex[br] {
			miss[br] = true
		}
	}
	return sortedBranches(ex), sortedBranches(miss)
}

func sortedInts(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

func sortedBranches(set map[Branch]bool) []Branch {
	out := make([]Branch, 0, len(set))
	for br := range set {
		out = append(out, br)
	}
	sort.Slice(out, func(i, j int) bool { return lessBranch(out[i], out[j]) })
	return out
}

// Read decodes a coverage document.
func Read(r io.Reader) (*Coverage, error) {
	var c Coverage
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode coverage: %w", err)
	}
	if c.Files == nil {
		c.Files = make(map[string]*File)
	}
	return &c, nil
}

// WriteJSON encodes c, indented.
func WriteJSON(w io.Writer, c *Coverage) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(c)
}
